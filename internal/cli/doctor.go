package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"gmxup/internal/sysprobe"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check host readiness for a source install",
		RunE:  runDoctor,
	}
}

type healthCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warning", "error"
	Summary string `json:"summary"`
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	env := sysprobe.Probe(cmd.Context())

	checks := []healthCheck{
		checkPackageManager(env),
		checkTools(env),
		checkFFTW(env),
		checkInstalled(env),
	}

	return writeDoctorResult(cmd, checks)
}

func checkPackageManager(env sysprobe.Environment) healthCheck {
	if env.Manager == sysprobe.ManagerUnknown {
		return healthCheck{
			Name:    "Package manager",
			Status:  "error",
			Summary: "none of apt, yum, dnf, pacman, zypper found",
		}
	}
	return healthCheck{Name: "Package manager", Status: "ok", Summary: env.Manager.String()}
}

func checkTools(env sysprobe.Environment) healthCheck {
	missing := env.MissingTools(sysprobe.RequiredTools)
	if len(missing) == 0 {
		return healthCheck{
			Name:    "Build tools",
			Status:  "ok",
			Summary: fmt.Sprintf("%d of %d present", len(sysprobe.RequiredTools), len(sysprobe.RequiredTools)),
		}
	}
	status := "warning"
	if env.Manager == sysprobe.ManagerUnknown {
		// Missing tools are only a warning when a manager can install them.
		status = "error"
	}
	return healthCheck{
		Name:    "Build tools",
		Status:  status,
		Summary: "missing " + strings.Join(missing, ", "),
	}
}

func checkFFTW(env sysprobe.Environment) healthCheck {
	if env.FFTW.Complete() {
		return healthCheck{Name: "FFTW", Status: "ok", Summary: "single, double, and headers present"}
	}
	var missing []string
	if !env.FFTW.SinglePrecision {
		missing = append(missing, "single-precision lib")
	}
	if !env.FFTW.DoublePrecision {
		missing = append(missing, "double-precision lib")
	}
	if !env.FFTW.Headers {
		missing = append(missing, "headers")
	}
	return healthCheck{
		Name:    "FFTW",
		Status:  "warning",
		Summary: "missing " + strings.Join(missing, ", ") + " (build would install or bundle)",
	}
}

func checkInstalled(env sysprobe.Environment) healthCheck {
	return healthCheck{
		Name:    "GROMACS",
		Status:  "ok",
		Summary: "installed version " + nonEmptyOrDash(env.InstalledVersion),
	}
}

func writeDoctorResult(cmd *cobra.Command, checks []healthCheck) error {
	out := cmd.OutOrStdout()
	if outputJSON {
		data, err := json.MarshalIndent(checks, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	bold := lipgloss.NewStyle().Bold(true).Inline(true)
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Inline(true)
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Inline(true)
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Inline(true)

	fmt.Fprintln(out, bold.Render("HOST HEALTH:"))

	for _, c := range checks {
		var statusStr string
		switch c.Status {
		case "ok":
			statusStr = green.Render("OK")
		case "warning":
			statusStr = yellow.Render("WARN")
		case "error":
			statusStr = red.Render("ERROR")
		}
		fmt.Fprintf(out, "  %-18s %s    %s\n", c.Name+":", statusStr, c.Summary)
	}

	return nil
}
