package main

import (
	"context"
	"fmt"

	"github.com/ainoobmenpg/cc-gateway/internal/sessions"
	"github.com/ainoobmenpg/cc-gateway/pkg/models"
	"github.com/spf13/cobra"
)

func runSessionList(cmd *cobra.Command, configPath, channel string, limit int) error {
	store, closeStore, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer closeStore()

	sessionsFound, err := store.List(context.Background(), sessions.ListOptions{
		Channel: models.ChannelKind(channel),
		Limit:   limit,
	})
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(sessionsFound) == 0 {
		fmt.Fprintln(out, "no sessions found")
		return nil
	}
	for _, s := range sessionsFound {
		fmt.Fprintf(out, "%s  %s  touched=%s\n", s.ID, s.Key(), s.TouchedAt.Format("2006-01-02T15:04:05"))
	}
	return nil
}

func runSessionInspect(cmd *cobra.Command, configPath, sessionID string, historyLimit int) error {
	store, closeStore, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := context.Background()
	session, err := store.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:            %s\n", session.ID)
	fmt.Fprintf(out, "key:           %s\n", session.Key())
	fmt.Fprintf(out, "admin:         %v\n", session.AdminIdentity)
	fmt.Fprintf(out, "tool allowlist: %v\n", session.ToolAllowlist)
	fmt.Fprintf(out, "created:       %s\n", session.CreatedAt.Format("2006-01-02T15:04:05"))
	fmt.Fprintf(out, "touched:       %s\n", session.TouchedAt.Format("2006-01-02T15:04:05"))

	history, err := store.GetHistory(ctx, sessionID, historyLimit)
	if err != nil {
		return fmt.Errorf("get history: %w", err)
	}
	fmt.Fprintf(out, "\nlast %d messages:\n", len(history))
	for _, msg := range history {
		fmt.Fprintf(out, "  [%d] %s: %s\n", msg.Seq, msg.Role, msg.Text())
	}
	return nil
}
