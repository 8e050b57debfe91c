package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MissingResultError reports a completed operation whose payload matched
// none of the known success shapes. It carries a truncated dump of the raw
// payload for diagnostics.
type MissingResultError struct {
	Payload string
}

func (e *MissingResultError) Error() string {
	return "pipeline: completed operation carries no result locator; payload: " + e.Payload
}

type videoLocator struct {
	Video struct {
		URI string `json:"uri"`
	} `json:"video"`
}

// The provider's success envelope differs by model tier. Each known shape is
// a tagged variant tried in order; the first one yielding a non-empty
// locator wins. New shapes get a new entry here, orchestration logic stays
// untouched.
var resultShapes = []struct {
	name    string
	extract func(raw []byte) string
}{
	{
		name: "generatedVideos",
		extract: func(raw []byte) string {
			var env struct {
				GeneratedVideos []videoLocator `json:"generatedVideos"`
			}
			if json.Unmarshal(raw, &env) != nil {
				return ""
			}
			for _, v := range env.GeneratedVideos {
				if v.Video.URI != "" {
					return v.Video.URI
				}
			}
			return ""
		},
	},
	{
		name: "generateVideoResponse.generatedSamples",
		extract: func(raw []byte) string {
			var env struct {
				GenerateVideoResponse struct {
					GeneratedSamples []videoLocator `json:"generatedSamples"`
				} `json:"generateVideoResponse"`
			}
			if json.Unmarshal(raw, &env) != nil {
				return ""
			}
			for _, v := range env.GenerateVideoResponse.GeneratedSamples {
				if v.Video.URI != "" {
					return v.Video.URI
				}
			}
			return ""
		},
	},
	{
		name: "videos",
		extract: func(raw []byte) string {
			var env struct {
				Videos []struct {
					URI string `json:"uri"`
				} `json:"videos"`
			}
			if json.Unmarshal(raw, &env) != nil {
				return ""
			}
			for _, v := range env.Videos {
				if v.URI != "" {
					return v.URI
				}
			}
			return ""
		},
	},
}

const payloadDumpLimit = 512

// extractResultLocator probes a completed operation's payload through the
// known shapes in priority order.
func extractResultLocator(raw json.RawMessage) (string, error) {
	for _, shape := range resultShapes {
		if uri := shape.extract(raw); uri != "" {
			return uri, nil
		}
	}
	dump := strings.TrimSpace(string(raw))
	if len(dump) > payloadDumpLimit {
		dump = fmt.Sprintf("%s... (%d bytes total)", dump[:payloadDumpLimit], len(raw))
	}
	return "", &MissingResultError{Payload: dump}
}
