package main

import (
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/log"
	"github.com/gofrs/uuid"
	"github.com/hokaccha/go-prettyjson"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/urfave/cli"

	"github.com/leechd/leechd/internal/blocklist"
	"github.com/leechd/leechd/internal/config"
	"github.com/leechd/leechd/internal/logger"
	"github.com/leechd/leechd/internal/metainfo"
	"github.com/leechd/leechd/internal/resume"
	"github.com/leechd/leechd/internal/swarm"
)

var buildVersion = "dev"

func main() {
	app := cli.NewApp()
	app.Name = "leechd"
	app.Usage = "download and seed a single-file torrent"
	app.Version = buildVersion
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Value: "~/.leechd.yaml", Usage: "config file path"},
		cli.StringFlag{Name: "dest, d", Usage: "download directory, overrides config"},
		cli.IntFlag{Name: "port, p", Usage: "listen port for incoming peer connections, overrides config"},
		cli.Int64Flag{Name: "upload-rate", Usage: "upload rate limit in bytes/sec, 0 disables limiting"},
		cli.BoolFlag{Name: "seed", Usage: "after the download completes, keep running until interrupted (the coordinator has already stopped serving peers)"},
		cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
		cli.DurationFlag{Name: "status-interval", Value: 10 * time.Second, Usage: "how often to print progress"},
		cli.StringFlag{Name: "blocklist", Usage: "path to a CIDR blocklist file, one range per line"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	args := c.Args()
	if len(args) == 0 {
		return cli.NewExitError("give a torrent file as the first argument", 1)
	}

	if c.Bool("debug") {
		logger.SetLevel(log.DEBUG)
	} else {
		logger.SetLevel(log.INFO)
	}
	l := logger.New("main")

	cfgPath, err := homedir.Expand(c.String("config"))
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if v := c.String("dest"); v != "" {
		cfg.DownloadDir = v
	}
	if v := c.Int("port"); v != 0 {
		if v > math.MaxUint16 {
			return cli.NewExitError("invalid port number", 1)
		}
		cfg.Port = v
	}
	if v := c.Int64("upload-rate"); v != 0 {
		cfg.UploadBPS = v
	}

	resumePath, err := homedir.Expand(cfg.ResumeDB)
	if err != nil {
		return err
	}
	res, err := resume.Open(resumePath)
	if err != nil {
		return fmt.Errorf("cannot open resume db: %w", err)
	}
	defer res.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	mi, err := metainfo.New(f)
	if err != nil {
		return fmt.Errorf("cannot parse torrent file: %w", err)
	}

	peerID, err := newPeerID()
	if err != nil {
		return err
	}

	var bl *blocklist.Blocklist
	if p := c.String("blocklist"); p != "" {
		bp, err := homedir.Expand(p)
		if err != nil {
			return err
		}
		bf, err := os.Open(bp)
		if err != nil {
			return fmt.Errorf("cannot open blocklist: %w", err)
		}
		bl = blocklist.NewLogger(func(format string, v ...any) { l.Errorf(format, v...) })
		n, err := bl.Reload(bf)
		bf.Close()
		if err != nil {
			return fmt.Errorf("cannot load blocklist: %w", err)
		}
		l.Infof("loaded %d blocklist rules", n)
	}

	reg := swarm.NewRegistry()
	sc := swarm.Config{
		Port:       cfg.Port,
		UploadBPS:  cfg.UploadBPS,
		DestDir:    cfg.DownloadDir,
		PeerID:     peerID,
		ListenAddr: fmt.Sprintf(":%d", cfg.Port),
		Blocklist:  bl,
	}
	coord, err := swarm.Download(mi, sc, res, reg)
	if err != nil {
		return fmt.Errorf("cannot start download: %w", err)
	}

	l.Infof("downloading %q (%d pieces)", mi.Info.Name, mi.Info.NumPieces)

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, os.Interrupt, syscall.SIGTERM)

	statusTicker := time.NewTicker(c.Duration("status-interval"))
	defer statusTicker.Stop()

	seed := c.Bool("seed")
	for {
		select {
		case <-coord.Done():
			printStatus(coord)
			if seed && coord.StatusValue() == swarm.StatusComplete {
				l.Info("download complete, waiting until interrupted")
				<-sigC
			}
			return nil
		case <-sigC:
			l.Info("shutting down")
			coord.Close()
			<-coord.Done()
			printStatus(coord)
			return nil
		case <-statusTicker.C:
			printStatus(coord)
		}
	}
}

func printStatus(coord *swarm.Coordinator) {
	b, err := prettyjson.Marshal(coord.Snapshot())
	if err != nil {
		return
	}
	fmt.Fprintln(os.Stderr, string(b))
}

func newPeerID() ([20]byte, error) {
	var id [20]byte
	copy(id[:], "-LD0001-")
	u, err := uuid.NewV4()
	if err != nil {
		return id, err
	}
	copy(id[8:], u[:])
	return id, nil
}
