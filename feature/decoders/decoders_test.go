package decoders

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"asset-exporter/core/classify"
	"asset-exporter/core/storage/mocks"

	"github.com/minio/minio-go/v7"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPassthrough(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, filepath.Join("src", "Config", "Game.ini"), []byte("a=1"), 0o644))
	require.NoError(t, afero.WriteFile(fs, filepath.Join("src", "Content", "Hero.UASSET"), []byte("bin"), 0o644))

	d := NewPassthrough(fs, "src")

	data, err := d.Decode(context.Background(), classify.SourceFile{Path: "Config/Game", Extension: "ini"})
	require.NoError(t, err)
	assert.Equal(t, "a=1", string(data))

	data, err = d.Decode(context.Background(), classify.SourceFile{Path: "Content/Hero", Extension: "uasset"})
	require.NoError(t, err)
	assert.Equal(t, "bin", string(data))

	_, err = d.Decode(context.Background(), classify.SourceFile{Path: "Content/Gone", Extension: "uasset"})
	assert.Error(t, err)
}

func TestObjectPassthrough(t *testing.T) {
	client := new(mocks.Client)
	client.On("GetObject", mock.Anything, "assets", "game/Content/Hero.uasset", mock.Anything).
		Return(io.NopCloser(strings.NewReader("bin")), nil)
	client.On("GetObject", mock.Anything, "assets", "game/Content/Gone.uasset", mock.Anything).
		Return(nil, errors.New("not found"))

	key := func(f classify.SourceFile) string { return "game/" + f.Path + "." + f.Extension }
	d := NewObjectPassthrough(client, "assets", key)

	data, err := d.Decode(context.Background(), classify.SourceFile{Path: "Content/Hero", Extension: "uasset"})
	require.NoError(t, err)
	assert.Equal(t, "bin", string(data))

	_, err = d.Decode(context.Background(), classify.SourceFile{Path: "Content/Gone", Extension: "uasset"})
	assert.Error(t, err)
	client.AssertExpectations(t)
}

func TestPassthrough_UsesListedSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, filepath.Join("src", "Content", "UI", "Icon.PNG"), []byte("png"), 0o644))

	data, err := NewPassthrough(fs, "src").Decode(context.Background(), classify.SourceFile{
		Path:      "Content/UI/Icon",
		Extension: "png",
		Source:    "Content/UI/Icon.PNG",
	})
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
}

func listed(infos ...minio.ObjectInfo) <-chan minio.ObjectInfo {
	ch := make(chan minio.ObjectInfo, len(infos))
	for _, info := range infos {
		ch <- info
	}
	close(ch)
	return ch
}

func TestObjectPassthrough_ExtensionCase(t *testing.T) {
	key := func(f classify.SourceFile) string {
		if f.Source != "" {
			return f.Source
		}
		return "game/" + f.Path + "." + f.Extension
	}

	t.Run("Listed key is used as is", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("GetObject", mock.Anything, "assets", "game/Content/UI/Icon.PNG", mock.Anything).
			Return(io.NopCloser(strings.NewReader("png")), nil)

		data, err := NewObjectPassthrough(client, "assets", key).Decode(context.Background(), classify.SourceFile{
			Path:      "Content/UI/Icon",
			Extension: "png",
			Source:    "game/Content/UI/Icon.PNG",
		})
		require.NoError(t, err)
		assert.Equal(t, "png", string(data))
		client.AssertExpectations(t)
	})

	t.Run("Registry record falls back to a case-insensitive match", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("GetObject", mock.Anything, "assets", "game/Content/UI/Icon.png", mock.Anything).
			Return(nil, minio.ErrorResponse{Code: "NoSuchKey", Key: "game/Content/UI/Icon.png"})
		client.On("ListObjects", mock.Anything, "assets", mock.MatchedBy(func(opts minio.ListObjectsOptions) bool {
			return opts.Prefix == "game/Content/UI/" && !opts.Recursive
		})).Return(listed(
			minio.ObjectInfo{Key: "game/Content/UI/Banner.png"},
			minio.ObjectInfo{Key: "game/Content/UI/Icon.PNG"},
		))
		client.On("GetObject", mock.Anything, "assets", "game/Content/UI/Icon.PNG", mock.Anything).
			Return(io.NopCloser(strings.NewReader("png")), nil)

		data, err := NewObjectPassthrough(client, "assets", key).Decode(context.Background(), classify.SourceFile{
			Path:      "Content/UI/Icon",
			Extension: "png",
		})
		require.NoError(t, err)
		assert.Equal(t, "png", string(data))
		client.AssertExpectations(t)
	})

	t.Run("Other errors are not retried", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("GetObject", mock.Anything, "assets", "game/Content/UI/Icon.png", mock.Anything).
			Return(nil, minio.ErrorResponse{Code: "AccessDenied"})

		_, err := NewObjectPassthrough(client, "assets", key).Decode(context.Background(), classify.SourceFile{
			Path:      "Content/UI/Icon",
			Extension: "png",
		})
		assert.Error(t, err)
		client.AssertNotCalled(t, "ListObjects", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestManifest(t *testing.T) {
	data, err := Manifest{}.Decode(context.Background(), classify.SourceFile{Path: "Content/Hero", Extension: "uasset", Size: 42})
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Content/Hero", doc["path"])
	assert.Equal(t, "uasset", doc["extension"])
	assert.Equal(t, float64(42), doc["size"])
}
