package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"cartograph/internal/doc"
	"cartograph/internal/editor"
	"cartograph/internal/journalclient"
)

type appendOptions struct {
	server     string
	target     string
	label      string
	bold       bool
	italic     bool
	color      string
	list       bool
	newVersion bool
}

func addJournal(topLevel *cobra.Command, ro *rootOptions) {
	journal := &cobra.Command{
		Use:   "journal",
		Short: "Work with the journal of a canvas node",
	}

	ao := &appendOptions{}
	appendCmd := &cobra.Command{
		Use:   "append [text...]",
		Short: "Append a line to a node's journal",
		Example: `
cartograph journal append --target node-1 --bold "Shipped the harbor survey"
`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("requires text to append")
			}
			if ao.target == "" {
				return errors.New("--target is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ro.load()
			if err != nil {
				return err
			}
			client := journalclient.New(ao.server, nil)
			opts := editor.Options{
				Debounce:        cfg.Editor.Debounce(),
				ThemeForeground: cfg.Editor.ThemeForeground,
			}
			return appendLine(cmd.Context(), cmd.OutOrStdout(), client, opts, ao, strings.Join(args, " "))
		},
	}
	appendCmd.Flags().StringVar(&ao.server, "server", "http://localhost:8787", "cartograph API base URL")
	appendCmd.Flags().StringVar(&ao.target, "target", "", "canvas node id")
	appendCmd.Flags().StringVar(&ao.label, "label", "", "canvas node label")
	appendCmd.Flags().BoolVar(&ao.bold, "bold", false, "bold text")
	appendCmd.Flags().BoolVar(&ao.italic, "italic", false, "italic text")
	appendCmd.Flags().StringVar(&ao.color, "color", "", "text color")
	appendCmd.Flags().BoolVar(&ao.list, "list", false, "append as a list item")
	appendCmd.Flags().BoolVar(&ao.newVersion, "new-version", false, "save as a new version instead of updating the latest")

	journal.AddCommand(appendCmd)
	topLevel.AddCommand(journal)
}

func appendLine(ctx context.Context, out io.Writer, client *journalclient.Client, opts editor.Options, ao *appendOptions, text string) error {
	latest, err := client.Latest(ctx, ao.target)
	if err != nil && !errors.Is(err, journalclient.ErrNotFound) {
		return err
	}

	session := editor.New(client, opts)
	session.Open(ctx, editor.Target{ID: ao.target, Label: ao.label}, latest.ID, string(latest.Snapshot))
	if !session.Document().IsEmpty() {
		session.InsertText("\n")
	}
	if ao.list && !session.Toolbar().InList {
		session.ToggleList()
	}
	if ao.bold {
		session.ToggleFormat(doc.Bold)
	}
	if ao.italic {
		session.ToggleFormat(doc.Italic)
	}
	if ao.color != "" {
		session.SetColor(ao.color)
	}
	session.InsertText(text)

	if ao.newVersion {
		res, err := session.Save(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "saved new version %s\n", res.ID)
	} else if err := session.Flush(ctx); err != nil {
		return err
	}
	if err := session.Close(ctx); err != nil {
		return err
	}
	if notice := session.Notice(); notice != "" {
		return errors.New(notice)
	}
	fmt.Fprintln(out, session.Text())
	return nil
}
