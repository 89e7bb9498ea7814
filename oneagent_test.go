package oneagent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArnBdev/oneagent/channel"
	"github.com/ArnBdev/oneagent/core"
	"github.com/ArnBdev/oneagent/gateway"
	"github.com/ArnBdev/oneagent/group"
	"github.com/ArnBdev/oneagent/internal/testutil"
)

func TestNewDefaults(t *testing.T) {
	p := New()
	assert.NotNil(t, p.Sessions)
	assert.NotNil(t, p.Gateway)
	assert.NotNil(t, p.Registry)
	assert.NotNil(t, p.Channel)
	assert.NotNil(t, p.Coordinator)
	assert.NotNil(t, p.Archive)
	assert.Equal(t, gateway.PolicyStrict, p.Gateway.Policy())
}

func TestPlatformEndToEnd(t *testing.T) {
	transport := channel.NewLoopbackTransport()
	p := New(func(o *Options) {
		o.Transport = transport
		o.SendTimeout = 2 * time.Second
		o.ResponseDeadline = 2 * time.Second
	})

	votes := map[string]string{"dev": "X", "office": "X", "core": "Y"}
	for id, option := range votes {
		agentOption := option
		transport.Register("loop://"+id, func(ctx context.Context, req channel.Request) (channel.Response, error) {
			var reply core.Message
			if req.Message.Kind == core.KindTaskDirective {
				reply = testutil.VoteMessage(map[string]string{"technical": agentOption})
			} else {
				reply = core.NewTextMessage("agent", "ack")
			}
			return channel.Response{CorrelationID: req.CorrelationID, Message: reply}, nil
		})
		require.NoError(t, p.Registry.Register(testutil.NewCard(id).WithSkills("coordination").Build()))
	}

	// Session identity resolves through the gateway.
	sess, err := p.Sessions.Create(time.Hour)
	require.NoError(t, err)
	resolved, err := p.Gateway.Resolve(map[string][]string{gateway.DefaultHeader: {sess.ID}})
	require.NoError(t, err)
	assert.Equal(t, sess.ID, resolved.ID)

	// Point-to-point delivery.
	task, reply, err := p.Channel.Send(context.Background(), "dev", core.NewTextMessage("user", "hello"))
	require.NoError(t, err)
	assert.Equal(t, core.TaskCompleted, task.State)
	assert.Equal(t, "ack", reply.Text())

	// Group round plus weighted consensus, archived on closure.
	grp, err := p.Coordinator.CreateGroup("architecture", testutil.Participants("dev", "office", "core"), group.ModeCollaborative, group.DecisionWeightedVote)
	require.NoError(t, err)
	_, err = p.Coordinator.Broadcast(context.Background(), grp.ID, core.NewTextMessage("coordinator", "discuss"))
	require.NoError(t, err)

	rec, err := p.Coordinator.SubmitConsensus(context.Background(), grp.ID, group.ConsensusRequest{
		DecisionPoints: []group.DecisionPoint{{Category: "technical", Options: []string{"X", "Y"}}},
		Weights: map[string]map[string]float64{
			"technical": {"dev": 0.4, "office": 0.4, "core": 0.2},
		},
	})
	require.NoError(t, err)
	require.Len(t, rec.Results, 1)
	assert.Equal(t, "X", rec.Results[0].Winner)

	entries, err := p.Archive.Read(grp.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
