package stage

// Stage is one named, independently scored unit of the conformance
// pipeline. Stages are ordered; identity is position plus name.
type Stage struct {
	Name             string            `yaml:"name" json:"name"`
	Run              string            `yaml:"run" json:"run"`
	Env              map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	WorkingDirectory string            `yaml:"working-directory,omitempty" json:"working_directory,omitempty"`
	// ContinueOnFailure defaults to true: a failing body stage is recorded
	// and the remaining stages still run so one run yields maximum
	// diagnostic coverage. Lifecycle phases (deploy, readiness) are not
	// stages and are never subject to this policy.
	ContinueOnFailure *bool `yaml:"continue_on_failure,omitempty" json:"continue_on_failure,omitempty"`
}

// Continues reports the effective continue-on-failure policy.
func (s Stage) Continues() bool {
	if s.ContinueOnFailure == nil {
		return true
	}
	return *s.ContinueOnFailure
}
