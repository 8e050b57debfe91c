// Package backup serializes the storyboard working set into a portable,
// versioned document and reconstructs local working state from one. Live
// session handles never enter a document; they are re-encoded as data URIs
// on the way out and minted fresh on the way back in.
package backup

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"storyreel/internal/blob"
	"storyreel/internal/domain"
)

// FormatVersion tags every document this codec writes.
const FormatVersion = "2.0"

// InvalidDocumentError reports a document that lacks the minimum required
// shape. Restore performs no partial mutation when it is returned.
type InvalidDocumentError struct {
	Reason string
}

func (e *InvalidDocumentError) Error() string {
	return "backup: invalid document: " + e.Reason
}

// Document is the on-disk snapshot: full project state plus portable
// references to generated media, keyed by shot index. VideoURLs is the
// legacy field name older documents used for the video mapping.
type Document struct {
	Version         string         `json:"version"`
	Timestamp       time.Time      `json:"timestamp"`
	Data            domain.Project `json:"data"`
	GeneratedImages map[int]string `json:"generatedImages,omitempty"`
	VideoBase64     map[int]string `json:"videoBase64,omitempty"`
	VideoURLs       map[int]string `json:"videoUrls,omitempty"`
}

// VideoRef is either a live ephemeral handle or an already portable remote
// URL. Exactly one side is set. Keeping the two cases in distinct fields
// prevents a session token from masquerading as a serializable string.
type VideoRef struct {
	Handle *blob.Handle
	URL    string
}

// Release frees the underlying handle, if any.
func (r VideoRef) Release() {
	if r.Handle != nil {
		r.Handle.Release()
	}
}

// RestoredSet is the working state reconstructed from a document.
type RestoredSet struct {
	Project domain.Project
	Images  map[int]string
	Videos  map[int]VideoRef
}

// Codec converts between working state and portable documents.
type Codec struct {
	refs   *blob.Registry
	logger zerolog.Logger
}

func NewCodec(refs *blob.Registry, logger zerolog.Logger) *Codec {
	return &Codec{refs: refs, logger: logger}
}

// Serialize snapshots the working set. Image references are already data
// URIs in working state and pass through unchanged. Each video handle is
// re-encoded as a data URI; entries whose bytes can no longer be resolved
// are skipped with a diagnostic rather than failing the whole backup.
func (c *Codec) Serialize(project domain.Project, images map[int]string, videos map[int]VideoRef) *Document {
	doc := &Document{
		Version:   FormatVersion,
		Timestamp: time.Now().UTC(),
		Data:      project,
	}

	if len(images) > 0 {
		doc.GeneratedImages = make(map[int]string, len(images))
		for idx, ref := range images {
			doc.GeneratedImages[idx] = ref
		}
	}

	if len(videos) > 0 {
		doc.VideoBase64 = make(map[int]string, len(videos))
		for idx, ref := range videos {
			switch {
			case ref.URL != "":
				doc.VideoBase64[idx] = ref.URL
			case ref.Handle != nil:
				data, err := ref.Handle.Bytes()
				if err != nil {
					c.logger.Warn().Err(err).Int("shot", idx).Msg("backup: video handle unresolvable, skipping entry")
					continue
				}
				doc.VideoBase64[idx] = EncodeDataURI("video/mp4", data)
			}
		}
		if len(doc.VideoBase64) == 0 {
			doc.VideoBase64 = nil
		}
	}

	return doc
}

// Deserialize validates the document and reconstructs working state. A
// malformed document fails the whole restore; missing optional mappings
// are valid and yield empty maps. Documents predating the videoBase64
// field are accepted through the legacy videoUrls mapping.
func (c *Codec) Deserialize(doc *Document) (*RestoredSet, error) {
	if doc == nil {
		return nil, &InvalidDocumentError{Reason: "empty document"}
	}
	if doc.Data.Shots == nil {
		return nil, &InvalidDocumentError{Reason: "missing storyboard sequence"}
	}

	set := &RestoredSet{
		Project: doc.Data,
		Images:  make(map[int]string),
		Videos:  make(map[int]VideoRef),
	}

	for idx, ref := range doc.GeneratedImages {
		if blob.IsEphemeralToken(ref) {
			c.logger.Warn().Int("shot", idx).Msg("backup: image entry is a stale session handle, omitting")
			continue
		}
		set.Images[idx] = ref
	}

	videoEntries := doc.VideoBase64
	if len(videoEntries) == 0 {
		videoEntries = doc.VideoURLs
	}

	for idx, ref := range videoEntries {
		restored, ok := c.restoreVideo(idx, ref)
		if !ok {
			continue
		}
		set.Videos[idx] = restored
	}

	return set, nil
}

// restoreVideo turns one portable video entry back into a local reference.
// Entries that are neither data URIs nor remote URLs were only meaningful
// in the session that wrote them and are unrestorable.
func (c *Codec) restoreVideo(idx int, ref string) (VideoRef, bool) {
	switch {
	case IsDataURI(ref):
		_, data, err := DecodeDataURI(ref)
		if err != nil {
			c.logger.Warn().Err(err).Int("shot", idx).Msg("backup: video data URI undecodable, omitting")
			return VideoRef{}, false
		}
		return VideoRef{Handle: c.refs.Wrap(data)}, true
	case IsRemoteURL(ref):
		return VideoRef{URL: ref}, true
	default:
		c.logger.Warn().Int("shot", idx).Msg("backup: video entry is not restorable outside its session, omitting")
		return VideoRef{}, false
	}
}

// Decode parses raw JSON into a document, rejecting anything that is not a
// JSON object up front so restore fails before touching working state.
func Decode(raw []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &InvalidDocumentError{Reason: fmt.Sprintf("parse: %v", err)}
	}
	return &doc, nil
}

// Encode renders the document as indented JSON for the backup file.
func Encode(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}
