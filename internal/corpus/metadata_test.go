package corpus

import "testing"

func Test_InferMetadata(t *testing.T) {
	t.Parallel()
	cases := []struct {
		rel       string
		wantTopic string
		wantTags  []string
	}{
		{"guide.md", "general", nil},
		{"thermal/cooling.md", "thermal", []string{"thermal"}},
		{"whitepapers/packaging/cpo-overview.pdf", "packaging", []string{"whitepapers", "packaging"}},
		{"standards/oif-cei.html", "standards", []string{"standards"}},
		{"Market-Roadmap-2030.md", "roadmap", nil},
		{"notes/silicon-wafers.txt", "materials", []string{"notes"}},
	}

	for _, tc := range cases {
		t.Run(tc.rel, func(t *testing.T) {
			tags, metadata := InferMetadata(tc.rel)
			if metadata["topic"] != tc.wantTopic {
				t.Errorf("topic = %q, want %q", metadata["topic"], tc.wantTopic)
			}
			if len(tags) != len(tc.wantTags) {
				t.Fatalf("tags = %v, want %v", tags, tc.wantTags)
			}
			for i := range tags {
				if tags[i] != tc.wantTags[i] {
					t.Errorf("tags[%d] = %q, want %q", i, tags[i], tc.wantTags[i])
				}
			}
			if metadata["format"] == "" {
				t.Error("format metadata missing")
			}
		})
	}
}

func Test_InferMetadata_DirMetadata(t *testing.T) {
	t.Parallel()
	_, metadata := InferMetadata("whitepapers/deep/nested/doc.md")
	if metadata["dir"] != "whitepapers" {
		t.Errorf("dir = %q, want whitepapers", metadata["dir"])
	}

	_, metadata = InferMetadata("top-level.md")
	if _, ok := metadata["dir"]; ok {
		t.Errorf("dir metadata present for top-level file: %q", metadata["dir"])
	}
}
