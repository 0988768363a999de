// Package bootargs extracts the boot configuration from the kernel command
// line.
package bootargs

import (
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
)

// Kernel command line keys.
const (
	KeySystemPartition = "system_partition"
	KeyUserPartition   = "user_partition"
	KeyInit            = "init"
)

//nolint:gochecknoglobals
var (
	debugSwitches = []string{"debug", "init_stage1.debug"}
	// offValues turn a debug switch given as key=value off.
	offValues = []string{"0", "false", "off", "no"}
)

// ErrMissingKey is returned if a required key is absent from the command line.
var ErrMissingKey = errors.New("missing required kernel argument")

// CmdlineReader provides the kernel command line.
type CmdlineReader interface {
	ReadCmdline() (string, error)
}

// Args is the boot configuration. Partition references are kept as given on
// the command line, including a possible "UUID=" prefix.
type Args struct {
	SystemPartition string
	UserPartition   string

	// Init is the program executed inside the new root. Empty if the
	// command line does not name one.
	Init string
	// Debug enables directory listings on the console. It is set by a bare
	// debug switch or by one with any value other than 0, false, off or no.
	Debug bool
}

// Parse reads the command line from r and builds Args from it.
func Parse(r CmdlineReader) (*Args, error) {
	cmdline, err := r.ReadCmdline()
	if err != nil {
		return nil, errors.Wrap(err, "read kernel command line")
	}

	return FromCmdline(cmdline)
}

// FromCmdline builds Args from a command line string.
func FromCmdline(cmdline string) (*Args, error) {
	values := ParseString(cmdline)

	args := &Args{}

	for _, req := range []struct {
		key string
		dst *string
	}{
		{KeySystemPartition, &args.SystemPartition},
		{KeyUserPartition, &args.UserPartition},
	} {
		v, ok := values[req.key]
		if !ok {
			return nil, errors.Wrapf(ErrMissingKey, "%s", req.key)
		}
		*req.dst = v
	}

	args.Init = values[KeyInit]

	args.Debug = debugEnabled(cmdline, values)

	return args, nil
}

func debugEnabled(cmdline string, values map[string]string) bool {
	tokens := strings.Fields(cmdline)

	for _, s := range debugSwitches {
		if slices.Contains(tokens, s) {
			return true
		}
		if v, ok := values[s]; ok && !slices.Contains(offValues, strings.ToLower(v)) {
			return true
		}
	}

	return false
}

// ParseString splits cmdline on whitespace and each token once on the first
// "=". Tokens without "=" are skipped. If a key occurs more than once, the
// last occurrence wins.
func ParseString(cmdline string) map[string]string {
	values := make(map[string]string)

	for _, token := range strings.Fields(cmdline) {
		key, value, ok := strings.Cut(token, "=")
		if !ok {
			continue
		}
		values[key] = value
	}

	return values
}

// PartitionUUID strips a leading "UUID=" or "PARTUUID=" from a partition
// reference.
func PartitionUUID(ref string) string {
	for _, prefix := range []string{"PARTUUID=", "UUID="} {
		if v, ok := strings.CutPrefix(ref, prefix); ok {
			return v
		}
	}

	return ref
}
