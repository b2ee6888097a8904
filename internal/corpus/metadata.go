package corpus

import (
	"path"
	"strings"
)

// topicPatterns maps a topic label to the path substrings that imply it.
// Ordered so the first match wins deterministically.
var topicPatterns = []struct {
	topic    string
	patterns []string
}{
	{"photonics", []string{"photonic", "waveguide", "laser", "optical", "transceiver"}},
	{"packaging", []string{"packag", "co-packaged", "cpo", "substrate", "assembly", "interposer"}},
	{"thermal", []string{"thermal", "cooling", "heat"}},
	{"standards", []string{"standard", "ieee", "oif", "msa", "compliance"}},
	{"roadmap", []string{"roadmap", "forecast", "market", "outlook"}},
	{"materials", []string{"material", "silicon", "inp", "polymer", "wafer"}},
}

// InferMetadata derives tags and filterable metadata from a document's
// relative path. Tags are the directory segments; metadata carries the file
// format, the inferred topic, and the top-level directory when there is one.
func InferMetadata(rel string) ([]string, map[string]string) {
	rel = path.Clean(strings.ToLower(rel))

	var tags []string
	dir := path.Dir(rel)
	if dir != "." {
		for _, seg := range strings.Split(dir, "/") {
			if seg != "" && seg != "." {
				tags = append(tags, seg)
			}
		}
	}

	metadata := map[string]string{
		"format": strings.TrimPrefix(path.Ext(rel), "."),
		"topic":  inferTopic(rel),
	}
	if len(tags) > 0 {
		metadata["dir"] = tags[0]
	}

	return tags, metadata
}

// inferTopic matches the path against the topic patterns, defaulting to
// "general".
func inferTopic(lowerRel string) string {
	for _, tp := range topicPatterns {
		for _, pat := range tp.patterns {
			if strings.Contains(lowerRel, pat) {
				return tp.topic
			}
		}
	}
	return "general"
}
