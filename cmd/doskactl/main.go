package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"doska/internal/commands"

	"github.com/docopt/docopt-go"
)

const DoskaCtlVersion = "0.1.0"

func main() {
	usage := `Doska control.

The default base url is http://localhost:8080.

Usage:
    doskactl watch [--base_url=<base_url>] (--board=<board_id> | --share=<share_id>)
        [--client_id=<client_id>] [--count=<count>]
    doskactl sticky [--base_url=<base_url>] --board=<board_id>
        [--name=<name>] [--x=<x>] [--y=<y>] <text>
    doskactl share [--base_url=<base_url>] --board=<board_id> [--owner=<owner_id>]
    doskactl snapshot [--base_url=<base_url>] (--board=<board_id> | --share=<share_id>)

Options:
    -h --help                  Show this screen.
    --version                  Show version.
    --base_url=<base_url>      Server base url [default: http://localhost:8080].
    --board=<board_id>         Board id.
    --share=<share_id>         Share link id, opens the board read-only.
    --client_id=<client_id>    Realtime client id, random by default.
    --count=<count>            Print this many messages then exit.
    --name=<name>              Presence name [default: doskactl].
    --x=<x>                    Sticky note x [default: 0].
    --y=<y>                    Sticky note y [default: 0].
    --owner=<owner_id>         Share creator, defaults to the board owner.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], DoskaCtlVersion)
	if err != nil {
		panic(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if watch_, _ := opts.Bool("watch"); watch_ {
		err = watch(ctx, opts)
	} else if sticky_, _ := opts.Bool("sticky"); sticky_ {
		err = sticky(ctx, opts)
	} else if share_, _ := opts.Bool("share"); share_ {
		err = share(ctx, opts)
	} else if snapshot_, _ := opts.Bool("snapshot"); snapshot_ {
		err = snapshot(ctx, opts)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func watch(ctx context.Context, opts docopt.Opts) error {
	baseURL, _ := opts.String("--base_url")
	boardID, _ := opts.String("--board")
	shareID, _ := opts.String("--share")
	clientID, _ := opts.String("--client_id")

	count := 0
	if s, _ := opts.String("--count"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid --count (%s)", err)
		}
		count = n
	}

	return commands.Watch(ctx, commands.WatchOptions{
		BaseURL:  baseURL,
		BoardID:  boardID,
		ShareID:  shareID,
		ClientID: clientID,
		Count:    count,
		Out:      os.Stdout,
		Status:   os.Stderr,
	})
}

func sticky(ctx context.Context, opts docopt.Opts) error {
	baseURL, _ := opts.String("--base_url")
	boardID, _ := opts.String("--board")
	name, _ := opts.String("--name")
	text, _ := opts.String("<text>")
	x, err := opts.Float64("--x")
	if err != nil {
		return fmt.Errorf("invalid --x (%s)", err)
	}
	y, err := opts.Float64("--y")
	if err != nil {
		return fmt.Errorf("invalid --y (%s)", err)
	}

	_, err = commands.Sticky(ctx, commands.StickyOptions{
		BaseURL: baseURL,
		BoardID: boardID,
		Name:    name,
		Text:    text,
		X:       x,
		Y:       y,
		Out:     os.Stdout,
	})
	return err
}

func share(ctx context.Context, opts docopt.Opts) error {
	baseURL, _ := opts.String("--base_url")
	boardID, _ := opts.String("--board")
	owner, _ := opts.String("--owner")
	_, err := commands.Share(ctx, baseURL, boardID, owner, os.Stdout)
	return err
}

func snapshot(ctx context.Context, opts docopt.Opts) error {
	baseURL, _ := opts.String("--base_url")
	boardID, _ := opts.String("--board")
	shareID, _ := opts.String("--share")
	return commands.Snapshot(ctx, baseURL, boardID, shareID, os.Stdout)
}
