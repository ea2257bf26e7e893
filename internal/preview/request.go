package preview

// Request says what one preview should serve. Both fields are optional and
// may be set together; the preview tool decides what the combination means.
type Request struct {
	TargetFile string
	Profile    string
}

// Args builds the preview command's argument list: base args, then the
// target file, then the profile flag and value, then extra args.
func (r Request) Args(base []string, profileFlag string, extra []string) []string {
	args := make([]string, 0, len(base)+len(extra)+3)
	args = append(args, base...)
	if r.TargetFile != "" {
		args = append(args, r.TargetFile)
	}
	if r.Profile != "" {
		args = append(args, profileFlag, r.Profile)
	}
	return append(args, extra...)
}
