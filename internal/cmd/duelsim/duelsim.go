// Package duelsim parses simulator flags and runs a scripted two-device
// battle over an in-process transport, including a mid-session silent
// reconnection and merge.
package duelsim

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nearplay/duelsync/internal/battle/card"
	"github.com/nearplay/duelsync/internal/battle/driver"
	"github.com/nearplay/duelsync/internal/battle/state"
	"github.com/nearplay/duelsync/internal/battle/wire"
	"github.com/nearplay/duelsync/internal/connection"
	entrypoint "github.com/nearplay/duelsync/internal/platform/cmd"
	"github.com/nearplay/duelsync/internal/platform/logging"
	"github.com/nearplay/duelsync/internal/storage"
	"github.com/nearplay/duelsync/internal/storage/sqlite"
	"github.com/nearplay/duelsync/internal/telemetry"
	"github.com/nearplay/duelsync/internal/transport/memory"
)

// Config holds simulator command configuration.
type Config struct {
	// StoragePath enables the SQLite diagnostics log when set.
	StoragePath string `env:"DUELSYNC_SIM_DB_PATH"`
	// SettleWait bounds how long the simulator waits for in-flight
	// deliveries to settle between script steps.
	SettleWait time.Duration `env:"DUELSYNC_SIM_SETTLE_WAIT" envDefault:"300ms"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.StoragePath, "db", cfg.StoragePath, "SQLite diagnostics log path (empty disables)")
	fs.DurationVar(&cfg.SettleWait, "settle-wait", cfg.SettleWait, "Wait between script steps")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// device bundles one simulated side.
type device struct {
	name   string
	driver *driver.Driver
	loop   *driver.Loop
}

// Run plays the scripted battle.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSim, func(ctx context.Context) error {
		log := logging.New()

		var loopOpts []driver.LoopOption
		var store *sqlite.Store
		if cfg.StoragePath != "" {
			var err error
			store, err = sqlite.Open(cfg.StoragePath)
			if err != nil {
				return fmt.Errorf("open diagnostics store: %w", err)
			}
			defer store.Close()
			loopOpts = append(loopOpts,
				driver.WithTelemetry(telemetry.NewEmitter(store)),
				driver.WithConnectionEventStore(store),
			)
		}

		link := memory.NewLink("endpoint-a1", "endpoint-b1")
		defer link.Close()

		host, err := newDevice("host", true, log, link, loopOpts)
		if err != nil {
			return err
		}
		guest, err := newDevice("guest", false, log, link, loopOpts)
		if err != nil {
			return err
		}
		link.A().SetHandler(host.loop)
		link.B().SetHandler(guest.loop)

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() { _ = host.loop.Run(runCtx) }()
		go func() { _ = guest.loop.Run(runCtx) }()

		link.Connect()
		settle(cfg.SettleWait)

		if err := selectAndReady(host, card.Card{ID: "card-ember", Name: "Emberling", Attack: 4, Health: 6, Rarity: "rare"}); err != nil {
			return fmt.Errorf("host script: %w", err)
		}
		if err := selectAndReady(guest, card.Card{ID: "card-tide", Name: "Tidecaller", Attack: 5, Health: 5, Rarity: "epic"}); err != nil {
			return fmt.Errorf("guest script: %w", err)
		}
		settle(cfg.SettleWait)

		// The transport silently re-pairs under fresh endpoint ids; both
		// sides must detect the reconnection and converge through a merge.
		link.SilentRepair("endpoint-a2", "endpoint-b2")
		settle(cfg.SettleWait)

		if err := runBattle(host); err != nil {
			return fmt.Errorf("battle script: %w", err)
		}
		settle(cfg.SettleWait)

		report(log, host)
		report(log, guest)
		if store != nil {
			reportPersisted(ctx, log, store, host)
			reportPersisted(ctx, log, store, guest)
		}
		return nil
	})
}

func newDevice(name string, isHost bool, log *logrus.Logger, link *memory.Link, loopOpts []driver.LoopOption) (*device, error) {
	initial, err := state.Create(nil)
	if err != nil {
		return nil, fmt.Errorf("create %s session: %w", name, err)
	}
	d := driver.New(initial, isHost, driver.WithLogger(log))
	channel := link.A()
	if !isHost {
		channel = link.B()
	}
	loop := driver.NewLoop(d, channel, loopOpts...)
	return &device{name: name, driver: d, loop: loop}, nil
}

// selectAndReady runs one side's selection and announces it to the peer.
func selectAndReady(dev *device, full card.Card) error {
	chosen := card.Project(full)
	var sessionID string
	if err := <-dev.loop.Submit(func(d *driver.Driver) (state.Snapshot, error) {
		snapshot, err := d.OpponentJoined()
		if err != nil {
			return snapshot, err
		}
		snapshot, err = d.SelectCard(chosen, &full)
		sessionID = snapshot.SessionID
		return snapshot, err
	}); err != nil {
		return fmt.Errorf("select card: %w", err)
	}

	frame, err := wire.EncodeCardSelected(sessionID, chosen, &full)
	if err != nil {
		return err
	}
	if err := <-dev.loop.Send(frame); err != nil {
		return fmt.Errorf("announce selection: %w", err)
	}

	if err := <-dev.loop.Submit(func(d *driver.Driver) (state.Snapshot, error) {
		return d.SetReady()
	}); err != nil {
		return fmt.Errorf("set ready: %w", err)
	}
	frame, err = wire.EncodeReady(sessionID)
	if err != nil {
		return err
	}
	if err := <-dev.loop.Send(frame); err != nil {
		return fmt.Errorf("announce ready: %w", err)
	}
	return nil
}

// runBattle resolves the battle on the host and announces the outcome.
func runBattle(host *device) error {
	var sessionID string
	var result state.BattleResult
	if err := <-host.loop.Submit(func(d *driver.Driver) (state.Snapshot, error) {
		snapshot, err := d.StartReveal(state.SideLocal)
		if err != nil {
			return snapshot, err
		}
		if snapshot, err = d.RevealCards(); err != nil {
			return snapshot, err
		}
		if snapshot, err = d.RevealStats(); err != nil {
			return snapshot, err
		}

		damage := 5
		if snapshot, err = d.AppendStorySegment(state.StorySegment{
			Text:   "Emberling strikes first.",
			Actor:  state.SideLocal,
			Damage: &damage,
		}); err != nil {
			return snapshot, err
		}
		counter := 4
		if snapshot, err = d.AppendStorySegment(state.StorySegment{
			Text:   "Tidecaller answers with a wave.",
			Actor:  state.SideOpponent,
			Damage: &counter,
		}); err != nil {
			return snapshot, err
		}

		result = state.BattleResult{
			Winner:         state.SideLocal,
			LocalName:      "Emberling",
			OpponentName:   "Tidecaller",
			LocalHealth:    2,
			OpponentHealth: 0,
			Narrative:      "Emberling endures the wave and lands the final blow.",
		}
		snapshot, err = d.CompleteBattle(result)
		sessionID = snapshot.SessionID
		return snapshot, err
	}); err != nil {
		return err
	}

	frame, err := wire.EncodeBattleOutcome(sessionID, result)
	if err != nil {
		return err
	}
	if err := <-host.loop.Send(frame); err != nil {
		return fmt.Errorf("announce outcome: %w", err)
	}
	return nil
}

func report(log *logrus.Logger, dev *device) {
	var snapshot state.Snapshot
	var events []connection.Event
	<-dev.loop.Submit(func(d *driver.Driver) (state.Snapshot, error) {
		snapshot = d.Snapshot()
		events = d.ConnectionEvents()
		return snapshot, nil
	})

	log.WithFields(logrus.Fields{
		"device":            dev.name,
		"session_id":        snapshot.SessionID,
		"version":           snapshot.Version,
		"phase":             snapshot.Phase.String(),
		"connection_events": len(events),
		"missing_image":     snapshot.HasMissingOpponentImage(),
		"resend_needed":     snapshot.NeedsImageResend(),
	}).Info("final session state")
}

// reportPersisted logs the tail of the durable connection event log for a
// device's session.
func reportPersisted(ctx context.Context, log *logrus.Logger, store storage.ConnectionEventStore, dev *device) {
	var sessionID string
	<-dev.loop.Submit(func(d *driver.Driver) (state.Snapshot, error) {
		snapshot := d.Snapshot()
		sessionID = snapshot.SessionID
		return snapshot, nil
	})

	last, err := store.LastConnectionEvent(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		log.WithField("device", dev.name).Info("no connection events persisted")
		return
	}
	if err != nil {
		log.WithError(err).WithField("device", dev.name).Warn("read diagnostics log")
		return
	}
	log.WithFields(logrus.Fields{
		"device":            dev.name,
		"last_event":        string(last.Event.Type),
		"endpoint_id":       last.Event.EndpointID,
		"connection_number": last.Event.ConnectionNumber,
	}).Info("diagnostics log tail")
}

func settle(wait time.Duration) {
	if wait <= 0 {
		wait = 300 * time.Millisecond
	}
	time.Sleep(wait)
}
