package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/sempicanha/commilink/internal/client"
	"github.com/sempicanha/commilink/internal/domain"
)

// runChat connects, says HELLO, and serves the interactive prompt until
// EOF or the relay goes away.
func runChat(ctx context.Context, url, name string, log *zap.Logger) error {
	conn, err := client.Dial(ctx, url, log)
	if err != nil {
		return fmt.Errorf("connect %s: %w", url, err)
	}
	defer conn.Close()

	engine, err := client.New(name, os.Stdout, log)
	if err != nil {
		return err
	}
	fmt.Printf("connected to %s\n", url)
	fmt.Printf("identity: %s\n", engine.Identity())
	fmt.Printf("fingerprint: %s\n", engine.Fingerprint())

	if err := engine.Start(conn.Send); err != nil {
		return err
	}

	readDone := make(chan error, 1)
	go func() { readDone <- conn.ReadLoop(engine) }()

	printHelp()
	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readDone:
			return fmt.Errorf("relay connection lost: %w", err)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := dispatch(engine, line); err != nil {
				fmt.Println(err)
			}
		}
	}
}

func dispatch(e *client.Engine, line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}
	switch parts[0] {
	case "/help":
		printHelp()
	case "/peers":
		for _, p := range e.Peers() {
			fmt.Println(p)
		}
	case "/listrooms":
		for _, r := range e.Rooms() {
			fmt.Println(r)
		}
	case "/join":
		if len(parts) < 2 {
			return fmt.Errorf("usage: /join <room> [groupKeyBase64]")
		}
		key := ""
		if len(parts) > 2 {
			key = parts[2]
		}
		if err := e.Join(domain.Room(parts[1]), key); err != nil {
			return err
		}
		fmt.Printf("subscribed to %s\n", parts[1])
	case "/publish":
		if len(parts) < 3 {
			return fmt.Errorf("usage: /publish <room> <text>")
		}
		mid, err := e.Publish(domain.Room(parts[1]), strings.Join(parts[2:], " "))
		if err != nil {
			return err
		}
		fmt.Printf("published to %s (mid=%s)\n", parts[1], mid)
	case "/send":
		if len(parts) < 3 {
			return fmt.Errorf("usage: /send <peerIdentity> <text>")
		}
		mid, err := e.SendDirect(domain.Identity(parts[1]), strings.Join(parts[2:], " "))
		if err != nil {
			return err
		}
		fmt.Printf("sent (mid=%s)\n", mid)
	case "/tombstone":
		if len(parts) < 2 {
			return fmt.Errorf("usage: /tombstone <mid>")
		}
		if err := e.Revoke(domain.MessageID(parts[1])); err != nil {
			return err
		}
		fmt.Printf("tombstone published for %s\n", parts[1])
	default:
		return fmt.Errorf("unknown command, /help for help")
	}
	return nil
}

func printHelp() {
	fmt.Print(`commands:
  /join <room> [groupKeyBase64]   join a room, optionally with its group key
  /publish <room> <text>          publish an encrypted room message
  /send <peerIdentity> <text>     send an encrypted direct message
  /tombstone <mid>                revoke a message everywhere
  /peers                          peers with an agreed session key
  /listrooms                      joined rooms
  /help                           this help
`)
}
