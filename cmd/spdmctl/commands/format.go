package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/spdm-io/spdm-responder/internal/server"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

// formatContext renders a responder ContextView in the requested format.
func formatContext(view server.ContextView, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(view)
	case formatTable:
		return formatContextTable(view), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// formatSessions renders a slice of sessions in the requested format.
func formatSessions(views []server.SessionView, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(views)
	case formatTable:
		return formatSessionsTable(views), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// formatSession renders a single session in the requested format.
func formatSession(view server.SessionView, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(view)
	case formatTable:
		return formatSessionDetail(view), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatJSONValue(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json: %w", err)
	}
	return string(b) + "\n", nil
}

func formatContextTable(view server.ContextView) string {
	var buf strings.Builder
	table := newKeyValueTable(&buf)

	table.Append([]string{"connection state", view.ConnectionState})
	table.Append([]string{"response state", view.ResponseState})
	table.Append([]string{"version", view.Negotiated.Version})
	table.Append([]string{"ct exponent", fmt.Sprintf("%d", view.Negotiated.CTExponent)})
	table.Append([]string{"local flags", fmt.Sprintf("0x%08x", view.Negotiated.LocalFlags)})
	table.Append([]string{"peer flags", fmt.Sprintf("0x%08x", view.Negotiated.PeerFlags)})
	table.Append([]string{"base hash sel", fmt.Sprintf("0x%08x", view.Negotiated.BaseHashSel)})
	table.Append([]string{"base asym sel", fmt.Sprintf("0x%08x", view.Negotiated.BaseAsymSel)})
	table.Append([]string{"session count", fmt.Sprintf("%d", view.SessionCount)})

	provisioned := 0
	for _, slot := range view.Slots {
		if slot.Provisioned {
			provisioned++
		}
	}
	table.Append([]string{"provisioned slots", fmt.Sprintf("%d/%d", provisioned, len(view.Slots))})

	table.Render()
	return buf.String()
}

func formatSessionsTable(views []server.SessionView) string {
	var buf strings.Builder
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"ID", "STATE", "MUT-AUTH"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for _, s := range views {
		table.Append([]string{
			fmt.Sprintf("%d", s.ID),
			s.State,
			fmt.Sprintf("%t", s.MutAuthRequested),
		})
	}

	table.Render()
	return buf.String()
}

func formatSessionDetail(view server.SessionView) string {
	var buf strings.Builder
	table := newKeyValueTable(&buf)

	table.Append([]string{"id", fmt.Sprintf("%d", view.ID)})
	table.Append([]string{"state", view.State})
	table.Append([]string{"mutual auth requested", fmt.Sprintf("%t", view.MutAuthRequested)})

	table.Render()
	return buf.String()
}

// newKeyValueTable configures a borderless two-column table for key/value
// output.
func newKeyValueTable(buf *strings.Builder) *tablewriter.Table {
	table := tablewriter.NewWriter(buf)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator(":")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}
