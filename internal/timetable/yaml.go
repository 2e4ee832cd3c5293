package timetable

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type yamlFile struct {
	Entries []yamlEntry `yaml:"entries"`
}

type yamlEntry struct {
	Team    string `yaml:"team"`
	Meeting string `yaml:"meeting"`
	Start   string `yaml:"start"`
	End     string `yaml:"end"`
	Day     string `yaml:"day"`
}

// LoadYAML reads entries from a file shaped like:
//
//	entries:
//	  - team: Team Rockers
//	    meeting: Maths
//	    start: "09:00"
//	    end: "09:45"
//	    day: monday
func LoadYAML(path string) ([]Entry, error) {
	data, err := os.ReadFile(strings.TrimSpace(path))
	if err != nil {
		return nil, err
	}
	return ParseYAML(data)
}

func ParseYAML(data []byte) ([]Entry, error) {
	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse timetable yaml: %w", err)
	}
	out := make([]Entry, 0, len(f.Entries))
	for i, raw := range f.Entries {
		e, err := NewEntry(raw.Team, raw.Meeting, raw.Start, raw.End, raw.Day)
		if err != nil {
			return nil, fmt.Errorf("entries[%d]: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func WriteYAML(w io.Writer, entries []Entry) error {
	f := yamlFile{Entries: make([]yamlEntry, 0, len(entries))}
	for _, e := range entries {
		f.Entries = append(f.Entries, yamlEntry{
			Team:    e.Team,
			Meeting: e.Meeting,
			Start:   e.Start.String(),
			End:     e.End.String(),
			Day:     e.Day.String(),
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return err
	}
	return enc.Close()
}
