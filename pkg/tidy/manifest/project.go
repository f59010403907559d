package manifest

import "github.com/jamesainslie/phototidy/pkg/tidy/types"

// EntryFromAction projects a planned action into a journal entry with the
// given status, snapshotting the originating file's metadata.
func EntryFromAction(a types.Action, status Status) Entry {
	e := Entry{
		RecordType: RecordAction,
		OpID:       ActionOpID(a),
		Action:     string(a.Kind),
		SrcPath:    a.Src,
		DstPath:    a.Dst,
		Status:     status,
		Reason:     a.Reason,
		NewName:    a.NewName,
		RenameBase: a.RenameBase,
	}

	if r := a.Record; r != nil {
		e.SizeBytes = r.Size
		if r.Resolution != nil {
			e.Resolution = []int{r.Resolution.Width, r.Resolution.Height}
		}
		e.HashMD5 = r.Digest("md5")
		e.HashSHA256 = r.Digest("sha256")
		e.TimestampLocked = r.TimestampLocked
		e.TimestampSource = string(r.TimestampSource)
		e.FileType = string(r.FileType)
		e.IsLivePair = r.IsLivePair
		e.PairID = r.PairID
		e.PairConfidence = r.PairConfidence
		e.IsScreenshot = r.IsScreenshot
		e.ScreenshotEvidence = r.ScreenshotEvidence
	}
	return e
}

// ToAction rebuilds an executable action from a recorded entry, keeping
// its op_id. Reason defaults to RESUME when the entry has none.
func (e Entry) ToAction() types.Action {
	reason := e.Reason
	if reason == "" {
		reason = types.ReasonResume
	}
	return types.Action{
		Kind:       types.ActionKind(e.Action),
		Reason:     reason,
		Src:        e.SrcPath,
		Dst:        e.DstPath,
		NewName:    e.NewName,
		RenameBase: e.RenameBase,
		OpID:       e.OpID,
	}
}
