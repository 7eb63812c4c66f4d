package segmentstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func farmDatabase() DatabaseFile {
	return DatabaseFile{
		VideoID:       "farm",
		VideoFileRoot: "/data/farm",
		Duration:      30,
		FPS:           1,
		Clips: []DatabaseClip{
			{ClipIndex: 0, StartTime: 0, EndTime: 10, OverviewText: "A farmer opens the barn door."},
			{ClipIndex: 1, StartTime: 10, EndTime: 20, OverviewText: "Two cows graze in a field."},
			{
				ClipIndex: 2, StartTime: 20, EndTime: 30, OverviewText: "A dog chases a chicken.",
				FrameRefs: []DatabaseFrame{
					{Timestamp: 21, Path: "frames/a.jpg", Description: "a brown dog running"},
					{Timestamp: 25, Path: "frames/b.jpg", Description: "a white chicken flapping"},
				},
			},
		},
	}
}

func writeDatabase(t *testing.T, db DatabaseFile) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), db.VideoID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := json.Marshal(db)
	require.NoError(t, err)
	path := filepath.Join(dir, "database.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadVideo(t *testing.T) {
	path := writeDatabase(t, farmDatabase())

	video, err := LoadVideo(path)
	require.NoError(t, err)

	assert.Equal(t, "farm", video.ID)
	assert.Equal(t, 30.0, video.Duration)
	require.Len(t, video.Clips, 3)
	assert.Equal(t, entity.TimeRange{Start: 10, End: 20}, video.Clips[1].Range)
	assert.Equal(t, "Two cows graze in a field.", video.Clips[1].Overview)
}

func TestToVideo_DerivesFrameRefs(t *testing.T) {
	video, err := farmDatabase().ToVideo()
	require.NoError(t, err)

	refs := video.Clips[1].FrameRefs
	require.Len(t, refs, 10)
	assert.Equal(t, 10.0, refs[0].Timestamp)
	assert.Equal(t, filepath.Join("/data/farm", "frames", "frames_n000011.jpg"), refs[0].Path)
	assert.Equal(t, 19.0, refs[9].Timestamp)
}

func TestToVideo_KeepsExplicitFrameRefs(t *testing.T) {
	video, err := farmDatabase().ToVideo()
	require.NoError(t, err)

	refs := video.Clips[2].FrameRefs
	require.Len(t, refs, 2)
	assert.Equal(t, filepath.Join("/data/farm", "frames/a.jpg"), refs[0].Path)
	assert.Equal(t, "a brown dog running", refs[0].Description)
}

func TestToVideo_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(db *DatabaseFile)
	}{
		{name: "no clips", mutate: func(db *DatabaseFile) { db.Clips = nil }},
		{name: "out of order", mutate: func(db *DatabaseFile) { db.Clips[0], db.Clips[1] = db.Clips[1], db.Clips[0] }},
		{name: "inverted range", mutate: func(db *DatabaseFile) { db.Clips[1].EndTime = 5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := farmDatabase()
			tt.mutate(&db)
			_, err := db.ToVideo()
			assert.ErrorIs(t, err, entity.ErrInvalidArgument)
		})
	}
}

func TestLoadVideo_MissingFile(t *testing.T) {
	_, err := LoadVideo(filepath.Join(t.TempDir(), "nope", "database.json"))
	assert.ErrorIs(t, err, entity.ErrNotFound)
}
