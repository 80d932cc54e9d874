package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/avigny/baton/internal/config"
	"github.com/avigny/baton/internal/engine"
	"github.com/avigny/baton/internal/mpris"
	"github.com/avigny/baton/internal/notify"
	"github.com/avigny/baton/internal/player"
	"github.com/avigny/baton/internal/playlist"
	"github.com/avigny/baton/internal/state"
)

const sessionSaveInterval = 5 * time.Second

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("BATON_DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if err := run(os.Args[1:]); err != nil {
		log.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: baton <files, directories or urls>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	tracks, err := playlist.Collect(args)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		fmt.Fprintln(os.Stderr, "nothing playable found")
		os.Exit(2)
	}
	pl := playlist.New(tracks...)

	eng, err := engine.New(engine.Type(cfg.Engine))
	if err != nil {
		return err
	}

	// State persistence is best-effort: playback works without it.
	var store player.VolumeStore
	stateMgr, err := state.Open()
	if err != nil {
		log.Warn().Err(err).Msg("state database unavailable, volume will not persist")
	} else {
		store = stateMgr
		defer stateMgr.Close()
	}

	pb := cfg.GetPlaybackConfig()
	opts := player.Options{
		SeekStep:             pb.SeekStep(),
		VolumeStep:           pb.VolumeStep,
		MaxConsecutiveErrors: pb.MaxConsecutiveErrors,
		RewindThreshold:      pb.RewindThreshold(),
	}
	if pb.PreviousBehaviour == "previous" {
		opts.PreviousBehaviour = player.PreviousNavigate
	}

	p, err := player.New(eng, pl, nil, opts, store)
	if err != nil {
		return err
	}
	defer p.Close()

	if cfg.NotificationsEnabled() {
		notifier, err := notify.New()
		if err != nil {
			log.Warn().Err(err).Msg("notifications unavailable")
		} else {
			go notify.NewBridge(notifier, p.Subscribe()).Run()
		}
	}

	if cfg.MprisEnabled() {
		adapter, err := mpris.New(p, pl)
		if err != nil {
			log.Warn().Err(err).Msg("mpris unavailable")
		} else {
			defer adapter.Close()
		}
	}

	go logEvents(p.Subscribe())
	if stateMgr != nil {
		go saveSessions(p, stateMgr)
	}

	p.PlayAt(0, engine.ChangeManual, false)

	quit := make(chan struct{})
	go readCommands(p, pl, quit)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
	case <-quit:
	}
	return nil
}

// logEvents mirrors controller events onto the console log.
func logEvents(sub *player.Subscription) {
	for {
		select {
		case <-sub.Done:
			return
		case e := <-sub.TrackChanged:
			log.Info().Str("title", e.Item.Track.Title).
				Str("artist", e.Item.Track.Artist).Msg("now playing")
		case e := <-sub.StateChanged:
			ev := log.Info().Stringer("status", e.Status)
			if e.PlaylistFinished {
				ev = ev.Bool("playlist_finished", true)
			}
			ev.Msg("playback state")
		case e := <-sub.VolumeChanged:
			log.Info().Int("volume", e.Volume).Bool("muted", e.Muted).Msg("volume")
		case e := <-sub.Error:
			log.Error().Str("reason", e.Message).Msg("playback stopped")
		case e := <-sub.ChangeProcessed:
			if !e.Valid {
				log.Warn().Str("location", e.Location).Msg("track unavailable")
			}
		}
	}
}

// saveSessions periodically records the playing position for the next launch.
func saveSessions(p *player.Player, mgr *state.Manager) {
	sub := p.Subscribe()
	ticker := time.NewTicker(sessionSaveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sub.Done:
			return
		case <-ticker.C:
			if item := p.CurrentItem(); item != nil {
				mgr.SaveSession(state.Session{LastIndex: item.Index, Position: p.Position()})
			}
		}
	}
}

// readCommands drives the controller from stdin, one command per line.
func readCommands(p *player.Player, pl *playlist.Playlist, quit chan<- struct{}) {
	printHelp()
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if idx, err := strconv.Atoi(line); err == nil {
			p.PlayAt(idx, engine.ChangeManual, false)
			continue
		}

		switch line {
		case "p":
			p.PlayPause()
		case "n":
			p.Next()
		case "b":
			p.Previous()
		case "B":
			p.RestartOrPrevious()
		case "s":
			p.Stop(false)
		case "S":
			p.StopAfterCurrent()
		case "f":
			p.SeekForward()
		case "r":
			p.SeekBackward()
		case "+":
			p.VolumeUp()
		case "-":
			p.VolumeDown()
		case "m":
			p.Mute()
		case "z":
			pl.SetShuffle(!pl.Shuffle())
			log.Info().Bool("shuffle", pl.Shuffle()).Msg("shuffle")
		case "q":
			close(quit)
			return
		case "h", "?":
			printHelp()
		default:
			log.Warn().Str("command", line).Msg("unknown command")
		}
	}
	close(quit)
}

func printHelp() {
	fmt.Fprintln(os.Stderr, `commands:
  p      play/pause        n  next           b  previous
  B      restart/previous  s  stop           S  stop after current
  f      seek forward      r  seek backward  <index>  play item
  +/-    volume            m  mute           z  shuffle
  q      quit              h  help`)
}
