package extract

import (
	"context"
	"os"

	"github.com/tphakala/flac"
	"github.com/tphakala/flac/meta"
)

// TagExtractor reads container-embedded tags. Native support is
// limited to FLAC Vorbis comments here; other containers (MP3 ID3,
// M4A, Ogg) have no tag-parsing library in this codebase's dependency
// set and fall back to an empty, low-confidence result (see DESIGN.md).
type TagExtractor struct{}

func (TagExtractor) Source() Source { return SourceTag }

func (TagExtractor) Extract(ctx context.Context, in PassageInput) Result {
	f, err := os.Open(in.FilePath)
	if err != nil {
		return Result{Source: SourceTag, Error: err}
	}
	defer f.Close()

	stream, err := flac.New(f)
	if err != nil {
		// Not a native FLAC stream; no tag library covers the rest.
		return Result{Source: SourceTag}
	}

	md := &Metadata{}
	for _, block := range stream.Blocks {
		vc, ok := block.Body.(*meta.VorbisComment)
		if !ok {
			continue
		}
		for _, tag := range vc.Tags {
			if len(tag) != 2 {
				continue
			}
			switch tag[0] {
			case "TITLE":
				md.Title = tag[1]
				md.TitleConfidence = 0.9
			case "ARTIST":
				md.Artist = tag[1]
				md.ArtistConfidence = 0.9
			case "ALBUM":
				md.Album = tag[1]
				md.AlbumConfidence = 0.9
			case "GENRE":
				md.Genre = tag[1]
			}
		}
	}
	return Result{Source: SourceTag, Metadata: md}
}
