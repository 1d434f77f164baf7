//go:build !darwin

package permissions

// Other platforms gate device access through the audio server, not a
// per-app consent store.
func microphoneStatus() Status { return StatusAuthorized }

func requestMicrophone() {}
