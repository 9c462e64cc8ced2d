// Package supervisor provides process supervision for the target.
//
// The Manager restarts the target process when it exits and tracks
// restart counts for the external repair agent. Exit code 1 is treated
// as the simulated crash and counted separately so operators can tell
// intentional chaos from real failures.
//
// The supervisor never clears the shared failure state: if crash mode
// is still active after a restart, the target will crash again. That
// crash loop is the scenario under test, and breaking it is the repair
// agent's job.
package supervisor
