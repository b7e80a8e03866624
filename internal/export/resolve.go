package export

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// WriteResolveScript emits the editor-project descriptor: a script for
// the DaVinci Resolve scripting host that imports the ordered clip list
// and assembles a timeline. The core never talks to the editor itself;
// the external automation collaborator runs this file.
//
// The clip entries carry absolute paths and the in/out points in
// seconds, exactly as encoded.
func WriteResolveScript(path, project string, records []ClipMetadataRecord) error {
	type entry struct {
		Path            string  `json:"path"`
		InPointSeconds  float64 `json:"in_point_seconds"`
		OutPointSeconds float64 `json:"out_point_seconds"`
	}

	entries := make([]entry, 0, len(records))
	for _, r := range records {
		abs, err := filepath.Abs(r.OutputPath)
		if err != nil {
			abs = r.OutputPath
		}
		entries = append(entries, entry{
			Path:            abs,
			InPointSeconds:  r.Start,
			OutPointSeconds: r.End,
		})
	}

	clipList, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return errors.Wrap(err, "encode clip list")
	}

	var b strings.Builder
	b.WriteString("#!/usr/bin/env python\n")
	fmt.Fprintf(&b, "# Clip import for project %q. Run inside the DaVinci Resolve\n", project)
	b.WriteString("# scripting console (Workspace > Console) or via its external host.\n\n")
	fmt.Fprintf(&b, "PROJECT_NAME = %q\n\n", project)
	fmt.Fprintf(&b, "CLIPS = %s\n\n", pythonize(string(clipList)))
	b.WriteString(resolveImportBody)

	return writeAtomic(path, []byte(b.String()))
}

// pythonize keeps the JSON clip list literal valid as a Python
// expression (JSON null/true/false never appear in our output, so the
// literal is already compatible).
func pythonize(jsonLiteral string) string {
	return jsonLiteral
}

const resolveImportBody = `def main():
    resolve = app.GetResolve() if "app" in globals() else None
    if resolve is None:
        import DaVinciResolveScript as dvr
        resolve = dvr.scriptapp("Resolve")

    pm = resolve.GetProjectManager()
    project = pm.CreateProject(PROJECT_NAME) or pm.LoadProject(PROJECT_NAME)
    media_pool = project.GetMediaPool()
    storage = resolve.GetMediaStorage()

    items = storage.AddItemListToMediaPool([c["path"] for c in CLIPS])
    media_pool.CreateTimelineFromClips(PROJECT_NAME + "_timeline", items)
    pm.SaveProject()
    print("Imported %d clips into %s" % (len(CLIPS), PROJECT_NAME))


if __name__ == "__main__":
    main()
`
