package adapter

import (
	"path/filepath"

	"golang.org/x/tools/cover"
)

// coverageForFile computes the statement coverage fraction for one file
// from a coverage profile. Blocks belonging to other files (the suite
// itself, helpers) are ignored so the figure reflects how much of the
// target the suite actually exercises.
func coverageForFile(profilePath, fileName string) (float64, error) {
	profiles, err := cover.ParseProfiles(profilePath)
	if err != nil {
		return 0, err
	}

	var total, covered int64

	for _, profile := range profiles {
		if filepath.Base(profile.FileName) != fileName {
			continue
		}

		for _, block := range profile.Blocks {
			total += int64(block.NumStmt)

			if block.Count > 0 {
				covered += int64(block.NumStmt)
			}
		}
	}

	if total == 0 {
		return 0, nil
	}

	return float64(covered) / float64(total), nil
}
