package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/matheus3301/stagechat/internal/api"
	"github.com/matheus3301/stagechat/internal/client"
	"github.com/matheus3301/stagechat/internal/config"
	"github.com/matheus3301/stagechat/internal/instance"
	"github.com/spf13/cobra"
	grpcstatus "google.golang.org/grpc/status"
)

type globals struct {
	instance string
	user     string
	jsonOut  bool
	timeout  time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "stagechatctl",
		Short:         "Talk to a stagechat daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.instance, "instance", "", "instance name (overrides config default)")
	root.PersistentFlags().StringVarP(&g.user, "user", "u", os.Getenv("STAGECHAT_USER"), "act as this user id")
	root.PersistentFlags().BoolVar(&g.jsonOut, "json", false, "output in JSON format")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 10*time.Second, "per-command timeout")

	root.AddCommand(
		newStatusCmd(g),
		newConversationsCmd(g),
		newMembersCmd(g),
		newMessagesCmd(g),
		newReadCmd(g),
		newCanMessageCmd(g),
		newWatchCmd(g),
	)
	return root
}

// run connects to the daemon and calls fn with a bounded context.
func (g *globals) run(fn func(ctx context.Context, c *client.Client) error) error {
	cfg, err := config.LoadOrDefault(instance.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	name, err := instance.Resolve(g.instance, cfg)
	if err != nil {
		return err
	}
	c, err := client.New(instance.SocketPath(name), g.user)
	if err != nil {
		return fmt.Errorf("cannot connect to daemon for instance %q: %w", name, err)
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()
	return fn(ctx, c)
}

// print writes v as JSON with --json, or calls text otherwise.
func (g *globals) print(v any, text func()) {
	if g.jsonOut {
		outputJSON(v)
		return
	}
	text()
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}

func printError(err error) {
	if kind := api.ErrorKind(err); kind != "" {
		fmt.Fprintf(os.Stderr, "error [%s]: %s\n", kind, grpcstatus.Convert(err).Message())
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}

func formatMs(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}

func displayName(p *api.Profile, fallback string) string {
	switch {
	case p == nil:
		if fallback == "" {
			return "(deleted user)"
		}
		return fallback
	case p.DisplayName != "":
		return p.DisplayName
	case p.FullName != "":
		return p.FullName
	default:
		return p.ID
	}
}
