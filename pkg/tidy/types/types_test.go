package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "plain bytes", input: "1024", want: 1024},
		{name: "kilobytes", input: "100K", want: 100 * 1024},
		{name: "megabytes with B", input: "64MB", want: 64 * 1024 * 1024},
		{name: "gigabytes with iB", input: "2GiB", want: 2 * 1024 * 1024 * 1024},
		{name: "decimal values truncated", input: "1.5G", want: 1610612736},
		{name: "whitespace", input: "  10M  ", want: 10 * 1024 * 1024},
		{name: "empty string", input: "", wantErr: true},
		{name: "invalid suffix", input: "100X", wantErr: true},
		{name: "negative value", input: "-100M", wantErr: true},
		{name: "suffix only", input: "M", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "0 B", FormatSize(0))
	assert.Equal(t, "1.0 KiB", FormatSize(1024))
	assert.Equal(t, "1.5 MiB", FormatSize(1536*1024))
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		wantOK bool
	}{
		{name: "valid", input: "2023-07-14 09:30:05", wantOK: true},
		{name: "unknown placeholder", input: UnknownTimestamp, wantOK: false},
		{name: "empty", input: "", wantOK: false},
		{name: "exif layout", input: "2023:07:14 09:30:05", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.input, FormatTimestamp(got))
			}
		})
	}
}

func TestFileRecord_Accessors(t *testing.T) {
	rec := &FileRecord{
		Path:            "/photos/a.jpg",
		Resolution:      &Resolution{Width: 4000, Height: 3000},
		TimestampLocked: "2024-01-02 03:04:05",
	}

	assert.Equal(t, int64(12_000_000), rec.Area())
	assert.Equal(t, "a.jpg", rec.Name())
	assert.Empty(t, rec.Digest("sha256"))

	rec.SetDigest("sha256", "abc")
	assert.Equal(t, "abc", rec.Digest("sha256"))

	ts, ok := rec.LockedTime()
	assert.True(t, ok)
	assert.Equal(t, time.January, ts.Month())

	assert.Equal(t, int64(0), (&FileRecord{}).Area())
}

func TestActionKind_Valid(t *testing.T) {
	assert.True(t, ActionMove.Valid())
	assert.True(t, ActionRename.Valid())
	assert.True(t, ActionArchive.Valid())
	assert.False(t, ActionRollback.Valid())
	assert.False(t, ActionKind("DELETE").Valid())
}
