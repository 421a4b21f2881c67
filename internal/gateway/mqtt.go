package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"

	"github.com/atinyakov/TagLock/internal/models"
)

// DefaultTopic is where the enforcement agent listens for commands.
const DefaultTopic = "taglock/restrictions/command"

// Command actions.
const (
	ActionApply = "apply"
	ActionClear = "clear"
)

// ErrInvalidCommand is returned by DecodeCommand for payloads it cannot use.
var ErrInvalidCommand = errors.New("gateway: invalid command")

// Command is the CBOR document published to the agent. The latest command is
// retained by the broker, so an agent that reconnects sees the current state.
type Command struct {
	Action    string    `cbor:"action"`
	Selection []byte    `cbor:"selection,omitempty"`
	Seq       uint64    `cbor:"seq"`
	IssuedAt  time.Time `cbor:"issued_at"`
}

// Publisher sends retained messages. *mqtt.Client implements it.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("gateway: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("gateway: CBOR decoder initialization failed: " + err.Error())
	}
}

// MQTT publishes apply and clear commands to the enforcement agent.
type MQTT struct {
	pub   Publisher
	topic string
	log   *zap.Logger
	now   func() time.Time

	mu  sync.Mutex
	seq uint64
}

// NewMQTT creates a gateway publishing to topic, or DefaultTopic when empty.
func NewMQTT(pub Publisher, topic string, log *zap.Logger) *MQTT {
	if topic == "" {
		topic = DefaultTopic
	}
	return &MQTT{pub: pub, topic: topic, log: log, now: time.Now}
}

func (g *MQTT) Apply(ctx context.Context, selection models.Selection) error {
	return g.send(ctx, Command{Action: ActionApply, Selection: selection})
}

func (g *MQTT) Clear(ctx context.Context) error {
	return g.send(ctx, Command{Action: ActionClear})
}

func (g *MQTT) send(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	cmd.Seq = g.seq + 1
	cmd.IssuedAt = g.now().UTC()
	payload, err := encMode.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode %s command: %w", cmd.Action, err)
	}
	if err := g.pub.PublishRetained(g.topic, payload); err != nil {
		return fmt.Errorf("publish %s command: %w", cmd.Action, err)
	}
	g.seq = cmd.Seq
	g.log.Info("restriction command published",
		zap.String("action", cmd.Action),
		zap.Uint64("seq", cmd.Seq),
		zap.String("topic", g.topic),
	)
	return nil
}

// DecodeCommand parses a command published by MQTT.
func DecodeCommand(payload []byte) (Command, error) {
	var cmd Command
	if err := decMode.Unmarshal(payload, &cmd); err != nil {
		return Command{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if cmd.Action != ActionApply && cmd.Action != ActionClear {
		return Command{}, fmt.Errorf("%w: unknown action %q", ErrInvalidCommand, cmd.Action)
	}
	return cmd, nil
}
