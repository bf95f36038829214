package main

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/serroba/online-board/internal/acl"
	"github.com/serroba/online-board/internal/api"
	"github.com/serroba/online-board/internal/board"
	"github.com/serroba/online-board/internal/config"
	"github.com/serroba/online-board/internal/storage"
	"github.com/spf13/viper"
)

func newClient(cfg *config.Config) *api.Client {
	return api.NewClient(cfg.Client.URL, cfg.Client.Email, nil)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

func printBoards(boards []storage.Board) error {
	if viper.GetBool("json") {
		return printJSON(boards)
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Name", "Created"})

	for _, b := range boards {
		tw.AppendRow(table.Row{b.ID, b.Name, b.CreatedAt.Format(time.RFC3339)})
	}

	tw.Render()

	return nil
}

func printMembers(members []acl.Member) error {
	if viper.GetBool("json") {
		return printJSON(members)
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Board", "Email", "Role"})

	for _, m := range members {
		tw.AppendRow(table.Row{m.BoardID, m.Email, m.Role})
	}

	tw.Render()

	return nil
}

func printObjects(objects []board.ActionPayload) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetTitle("Objects")
	tw.AppendHeader(table.Row{"#", "Instance", "Tool", "Color", "Fill", "Stroke"})

	for i, o := range objects {
		tw.AppendRow(table.Row{i + 1, o.InstanceID, o.Tool, o.Color, o.FillColor, formatFloat(o.StrokeWidth)})
	}

	tw.AppendFooter(table.Row{"", "", "", "", "Total", len(objects)})
	tw.Render()
}

func printMessages(messages []board.ChatMessage) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetTitle("Chat")
	tw.AppendHeader(table.Row{"Time", "Sender", "Message", "Status"})

	for _, m := range messages {
		tw.AppendRow(table.Row{m.Timestamp.Format(time.Kitchen), m.SenderEmail, m.Content, m.TransactionStatus})
	}

	tw.Render()
}

func formatFloat(v float64) string {
	if v == 0 {
		return ""
	}

	return strconv.FormatFloat(v, 'f', -1, 64)
}
