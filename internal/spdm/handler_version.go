package spdm

import "fmt"

func init() {
	registerHandler(CodeGetVersion, handleGetVersion)
}

// supportedVersions lists the SPDM protocol versions this responder
// advertises, highest first.
var supportedVersions = []Version{Version13, Version12, Version11, Version10}

// handleGetVersion implements GET_VERSION/VERSION. Dispatch
// has already reset the connection before calling this handler, since
// GET_VERSION is valid in every ConnectionState and always restarts
// negotiation.
func handleGetVersion(ctx *Context, req []byte, out []byte) (int, error) {
	entries := make([]VersionEntry, len(supportedVersions))
	for i, v := range supportedVersions {
		entries[i] = VersionEntry{Major: v.Major(), Minor: v.Minor()}
	}

	resp := VersionResponse{
		Header: Header{
			Version: Version10,
			Code:    CodeVersion,
		},
		VersionList: entries,
	}

	n, err := MarshalVersionResponse(out, resp)
	if err != nil {
		return 0, fmt.Errorf("handle get_version: %w", err)
	}

	if err := ctx.MessageA.Append(req, len(req)); err != nil {
		return 0, NewProtocolError(ErrorUnspecified, 0)
	}
	if err := ctx.MessageA.Append(out[:n], n); err != nil {
		return 0, NewProtocolError(ErrorUnspecified, 0)
	}

	ctx.ConnectionState.AdvanceTo(ConnectionStateAfterVersion)
	return n, nil
}
