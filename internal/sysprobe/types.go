package sysprobe

// PackageManager identifies the host's system package manager.
type PackageManager int

const (
	ManagerUnknown PackageManager = iota
	ManagerApt
	ManagerYum
	ManagerDnf
	ManagerPacman
	ManagerZypper
)

// String returns the command-line name of the package manager.
func (m PackageManager) String() string {
	switch m {
	case ManagerApt:
		return "apt"
	case ManagerYum:
		return "yum"
	case ManagerDnf:
		return "dnf"
	case ManagerPacman:
		return "pacman"
	case ManagerZypper:
		return "zypper"
	default:
		return "unknown"
	}
}

// FFTWStatus reports which pieces of the FFTW numeric library are present.
// All three must hold for the library to be considered complete.
type FFTWStatus struct {
	SinglePrecision bool
	DoublePrecision bool
	Headers         bool
}

// Complete reports whether both precision variants and the development
// headers are all present.
func (s FFTWStatus) Complete() bool {
	return s.SinglePrecision && s.DoublePrecision && s.Headers
}

// Environment is a snapshot of the ambient host state that gmxup's decision
// layer operates on. It is built once by Probe; nothing downstream inspects
// the host directly.
type Environment struct {
	Manager          PackageManager
	AvailableTools   map[string]string
	InstalledVersion string
	FFTW             FFTWStatus
}

// HasTool reports whether the named tool was found on PATH during probing.
func (e Environment) HasTool(name string) bool {
	_, ok := e.AvailableTools[name]
	return ok
}

// MissingTools returns the subset of required not found on PATH, preserving
// the order of required.
func (e Environment) MissingTools(required []string) []string {
	var missing []string
	for _, tool := range required {
		if !e.HasTool(tool) {
			missing = append(missing, tool)
		}
	}
	return missing
}
