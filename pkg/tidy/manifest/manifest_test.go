package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/phototidy/pkg/tidy/types"
)

func testRun() RunHeader {
	return RunHeader{
		RunID:     "Processed_20240101_120000",
		Mode:      "execute",
		SourceDir: "/photos",
		OutputDir: "/out/Processed_20240101_120000",
		CreatedAt: "2024-01-01T12:00:00Z",
	}
}

func sampleEntry(name string) Entry {
	a := types.Action{
		Kind:   types.ActionMove,
		Reason: types.ReasonDuplicateHash,
		Src:    "/photos/" + name,
		Dst:    "/out/TO_DELETE/DUPLICATES/" + name,
		Record: &types.FileRecord{
			Path:            "/photos/" + name,
			Size:            1024,
			Resolution:      &types.Resolution{Width: 4, Height: 3},
			Digests:         map[string]string{"sha256": "H", "md5": "M"},
			TimestampLocked: "2024-01-01 10:00:00",
			TimestampSource: types.TimestampEXIF,
			FileType:        types.FileTypeImage,
		},
	}
	return EntryFromAction(a, StatusPlanned)
}

func writeManifest(t *testing.T, entries ...Entry) string {
	t.Helper()
	path := PathFor(t.TempDir())

	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteRun(testRun()))
	for _, e := range entries {
		require.NoError(t, w.WriteEntry(e))
	}
	require.NoError(t, w.Finalize())
	return path
}

func TestWriter_FinalizeIsAtomic(t *testing.T) {
	t.Parallel()

	path := PathFor(t.TempDir())
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteRun(testRun()))
	require.NoError(t, w.WriteEntry(sampleEntry("a.jpg")))

	// Before finalize only the working file exists.
	assert.NoFileExists(t, path)
	assert.FileExists(t, path+PartialSuffix)

	require.NoError(t, w.Finalize())
	assert.FileExists(t, path)
	assert.NoFileExists(t, path+PartialSuffix)
	assert.Equal(t, 1, w.Entries())

	assert.ErrorIs(t, w.WriteEntry(sampleEntry("b.jpg")), ErrFinalized)
	assert.ErrorIs(t, w.Finalize(), ErrFinalized)
}

func TestWriter_CrashBeforeFinalize(t *testing.T) {
	t.Parallel()

	path := PathFor(t.TempDir())
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteRun(testRun()))
	require.NoError(t, w.WriteEntry(sampleEntry("a.jpg")))

	// Simulate a crash: the process dies without Finalize. The canonical
	// manifest must not exist at all.
	_, err = Load(path)
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, w.Abort())
	assert.NoFileExists(t, path+PartialSuffix)
}

func TestLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, sampleEntry("a.jpg"), sampleEntry("b.jpg"))

	j, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, j.Run)
	assert.Equal(t, "Processed_20240101_120000", j.Run.RunID)
	require.Len(t, j.Entries, 2)

	e := j.Entries[0]
	assert.Equal(t, RecordAction, e.RecordType)
	assert.Equal(t, StatusPlanned, e.Status)
	assert.Equal(t, "H", e.HashSHA256)
	assert.Equal(t, "M", e.HashMD5)
	assert.Equal(t, []int{4, 3}, e.Resolution)
	assert.Equal(t, "exif", e.TimestampSource)
	assert.Empty(t, j.Skipped)
}

func TestDecode_SkipsMalformedLines(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		`{"record_type":"RUN","run_id":"r1"}`,
		``,
		`{"record_type":"ACTION","op_id":"op_1","action":"MOVE","src_path":"a","status":"PLANNED"}`,
		`{"record_type":"ACTION","op_id":`,
		`{"record_type":"SOMETHING"}`,
		`   `,
		`{"record_type":"ACTION","op_id":"op_2","action":"MOVE","src_path":"b","status":"SUCCESS"}`,
	}, "\n")

	j, err := Decode(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "r1", j.Run.RunID)
	require.Len(t, j.Entries, 2)
	assert.Equal(t, "op_2", j.Entries[1].OpID)
	require.Len(t, j.Skipped, 2)
	assert.Equal(t, 4, j.Skipped[0].Line)
	assert.Equal(t, 5, j.Skipped[1].Line)
}

func TestUpdateStatus_RewritesWholeFile(t *testing.T) {
	t.Parallel()

	a, b := sampleEntry("a.jpg"), sampleEntry("b.jpg")
	path := writeManifest(t, a, b)

	require.NoError(t, UpdateStatus(path, b.OpID, StatusStarted, nil))
	require.NoError(t, UpdateStatus(path, b.OpID, StatusSuccess, func(e *Entry) {
		e.ResultStatus = "MOVED"
		e.RetryCount = 2
		e.ElapsedTimeSec = 0.25
	}))

	j, err := Load(path)
	require.NoError(t, err)
	require.Len(t, j.Entries, 2)
	assert.Equal(t, StatusPlanned, j.Entries[0].Status)
	assert.Equal(t, StatusSuccess, j.Entries[1].Status)
	assert.Equal(t, "MOVED", j.Entries[1].ResultStatus)
	assert.Equal(t, 2, j.Entries[1].RetryCount)
	assert.NotEmpty(t, j.Entries[1].UpdatedAt)

	// no temp files left behind
	leftovers, err := filepath.Glob(path + ".*.tmp")
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestUpdateStatus_Errors(t *testing.T) {
	t.Parallel()

	a := sampleEntry("a.jpg")
	path := writeManifest(t, a)

	assert.ErrorIs(t, UpdateStatus(path, "op_missing", StatusStarted, nil), ErrEntryNotFound)
	assert.ErrorIs(t, UpdateStatus(path, a.OpID, StatusSuccess, nil), ErrIllegalTransition)

	require.NoError(t, UpdateStatus(path, a.OpID, StatusStarted, nil))
	require.NoError(t, UpdateStatus(path, a.OpID, StatusSuccess, nil))
	assert.ErrorIs(t, UpdateStatus(path, a.OpID, StatusStarted, nil), ErrIllegalTransition, "SUCCESS is a sink")
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPlanned, StatusStarted, true},
		{StatusStarted, StatusSuccess, true},
		{StatusStarted, StatusFailed, true},
		{StatusStarted, StatusStarted, true},
		{StatusFailed, StatusStarted, true},
		{StatusPlanned, StatusSuccess, false},
		{StatusSuccess, StatusStarted, false},
		{StatusSuccess, StatusFailed, false},
		{StatusFailed, StatusSuccess, false},
		{StatusStarted, StatusPlanned, false},
		{StatusSuccess, StatusRolledBack, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestAppend_PreservesHistory(t *testing.T) {
	t.Parallel()

	a := sampleEntry("a.jpg")
	path := writeManifest(t, a)

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	rb := Entry{
		OpID:       RollbackOpID(a.OpID, a.DstPath, a.SrcPath, "2024-02-01T00:00:00Z"),
		Action:     string(types.ActionRollback),
		SrcPath:    a.DstPath,
		DstPath:    a.SrcPath,
		Status:     StatusRolledBack,
		Reason:     types.ReasonRollback,
		RollbackOf: a.OpID,
	}
	require.NoError(t, Append(path, rb))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(after), string(before)), "append must not rewrite existing lines")

	j, err := Load(path)
	require.NoError(t, err)
	require.Len(t, j.Entries, 2)
	assert.Equal(t, StatusRolledBack, j.Entries[1].Status)
	assert.Equal(t, RecordAction, j.Entries[1].RecordType)
	assert.Equal(t, a.OpID, j.Entries[1].RollbackOf)
}

func TestPersist_RequiresRunHeader(t *testing.T) {
	t.Parallel()

	j := &Journal{}
	assert.ErrorIs(t, j.Persist(filepath.Join(t.TempDir(), "m.jsonl")), ErrNoRunHeader)
}

func TestEntry_ToAction(t *testing.T) {
	t.Parallel()

	e := Entry{OpID: "op_x", Action: "RENAME", SrcPath: "/p/a.jpg", DstPath: "/p/b.jpg", NewName: "b.jpg"}
	a := e.ToAction()
	assert.Equal(t, types.ActionRename, a.Kind)
	assert.Equal(t, types.ReasonResume, a.Reason)
	assert.Equal(t, "op_x", ActionOpID(a))
}

func TestStatusHelpers(t *testing.T) {
	t.Parallel()

	assert.True(t, StatusRollbackConflict.Valid())
	assert.True(t, StatusMoved.Valid(), "legacy outcome statuses are readable")
	assert.False(t, Status("DONE").Valid())
	assert.True(t, StatusCopied.Completed())
	assert.True(t, StatusSuccess.Completed())
	assert.False(t, StatusStarted.Completed())
	assert.True(t, StatusRollbackSkipped.IsRollback())
	assert.False(t, StatusSuccess.IsRollback())
	assert.True(t, StatusRollbackTrashed.Undone())
	assert.False(t, StatusRollbackError.Undone())
}

func TestRunDirOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/out/Processed_1", RunDirOf(PathFor("/out/Processed_1")))
}

func TestRunDirName(t *testing.T) {
	at := time.Date(2024, 3, 9, 7, 5, 1, 0, time.UTC)
	assert.Equal(t, "Processed_20240309_070501", RunDirName(at))

	run := filepath.Join("out", RunDirName(at))
	assert.Equal(t, run, RunDirOf(PathFor(run)))
}

func TestJournal_LinesAreASCII(t *testing.T) {
	t.Parallel()

	cjk := sampleEntry("旅行/写真 ü.jpg")
	emoji := sampleEntry("🌅 <sunset> & co.jpg")
	path := writeManifest(t, cjk)

	j, err := Load(path)
	require.NoError(t, err)
	j.Add(emoji)
	require.NoError(t, j.Persist(path))
	require.NoError(t, Append(path, sampleEntry("ß.jpg")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	for i, b := range data {
		require.Less(t, b, byte(0x80), "byte %d is not ASCII", i)
	}
	assert.Contains(t, string(data), `\u65c5\u884c`)
	assert.Contains(t, string(data), `\ud83c\udf05`)
	assert.Contains(t, string(data), `<sunset> & co`, "HTML characters are not escaped")

	back, err := Load(path)
	require.NoError(t, err)
	require.Len(t, back.Entries, 3)
	assert.Equal(t, "/photos/旅行/写真 ü.jpg", back.Entries[0].SrcPath)
	assert.Equal(t, "/photos/🌅 <sunset> & co.jpg", back.Entries[1].SrcPath)
	assert.Equal(t, "/photos/ß.jpg", back.Entries[2].SrcPath)
	assert.Empty(t, back.Skipped)
}

func TestEscapeNonASCII(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{`{"a":"plain"}`, `{"a":"plain"}`},
		{`{"a":"é"}`, `{"a":"\u00e9"}`},
		{`{"a":"日"}`, `{"a":"\u65e5"}`},
		{`{"a":"😀"}`, `{"a":"\ud83d\ude00"}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, string(escapeNonASCII([]byte(tt.in))))
	}
}
