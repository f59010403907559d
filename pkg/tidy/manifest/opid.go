package manifest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/jamesainslie/phototidy/pkg/tidy/types"
)

// OpIDPrefix prefixes every operation id.
const OpIDPrefix = "op_"

// opIDHexLen is the number of hex characters kept from the digest.
const opIDHexLen = 16

// NormalizePath converts separators to forward slashes so ids are stable
// across platforms.
func NormalizePath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// OpID derives the idempotency key of an operation: a truncated sha256 of
// the canonical JSON {action, dst, extra, src} with sorted keys and no
// insignificant whitespace. An empty dst is treated as src.
func OpID(action, src, dst string, extra map[string]string) string {
	if dst == "" {
		dst = src
	}
	if extra == nil {
		extra = map[string]string{}
	}

	payload := map[string]any{
		"action": action,
		"src":    NormalizePath(src),
		"dst":    NormalizePath(dst),
		"extra":  extra,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Maps of strings always encode.
	_ = enc.Encode(payload)

	sum := sha256.Sum256(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	return OpIDPrefix + hex.EncodeToString(sum[:])[:opIDHexLen]
}

// ActionExtra returns the extra context map for an action. Empty optional
// values are omitted, so an action with only a reason hashes as {"reason": ...}.
func ActionExtra(a types.Action) map[string]string {
	extra := map[string]string{"reason": a.Reason}
	if a.NewName != "" {
		extra["new_name"] = a.NewName
	}
	if a.RenameBase != "" {
		extra["rename_base"] = a.RenameBase
	}
	return extra
}

// ActionOpID returns the operation id of an action. Actions rebuilt from
// a journal carry their recorded id.
func ActionOpID(a types.Action) string {
	if a.OpID != "" {
		return a.OpID
	}
	return OpID(string(a.Kind), a.Src, a.Dst, ActionExtra(a))
}

// RollbackOpID returns the id of the rollback record that undoes forward
// entry forwardID during the attempt started at attemptAt.
func RollbackOpID(forwardID, from, to, attemptAt string) string {
	return OpID(string(types.ActionRollback), from, to, map[string]string{
		"reason":      types.ReasonRollback,
		"rollback_of": forwardID,
		"rollback_at": attemptAt,
	})
}
