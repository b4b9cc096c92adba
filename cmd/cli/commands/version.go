package commands

import (
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

type versionInfo struct {
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	BuildDate  string `json:"build_date"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
	GoEthereum string `json:"go_ethereum,omitempty"`
}

// buildVersion collects the version fields, including the go-ethereum
// release the chain bindings were built against.
func buildVersion() versionInfo {
	v := versionInfo{
		Version:   GetVersion(),
		Commit:    GetCommit(),
		BuildDate: BuildDate,
		GoVersion: GetGoVersion(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range info.Deps {
			if dep.Path == "github.com/ethereum/go-ethereum" {
				v.GoEthereum = dep.Version
			}
		}
	}
	return v
}

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := buildVersion()
			if jsonOutput() {
				return printJSON(v)
			}
			fields := [][2]string{
				{"Version", v.Version},
				{"Commit", v.Commit},
				{"Built", v.BuildDate},
				{"Go", v.GoVersion},
				{"Platform", v.Platform},
			}
			if v.GoEthereum != "" {
				fields = append(fields, [2]string{"go-ethereum", v.GoEthereum})
			}
			cmd.Println(StatusBox(Logo(), fields))
			return nil
		},
	}
}
