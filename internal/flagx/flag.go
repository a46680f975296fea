// Package flagx contains helpers for parsing a subset of command-line flags
// without colliding with flags owned by other parts of the program.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs returns only the allowed flags (and their values) from args.
//
// Supported formats:
//
//	-c conf.json        flag and value as separate arguments
//	--config=conf.json  flag and value joined with '='
//
// A token following an allowed flag is taken as its value unless it starts
// with '-'.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// stringFlag parses os.Args for a string flag known under the given long and
// short names. The last occurrence wins; "" means the flag is absent.
func stringFlag(long, short, usage string) string {
	var v string

	args := FilterArgs(os.Args[1:], []string{"-" + short, "-" + long})

	fs := flag.NewFlagSet(long, flag.ContinueOnError)
	fs.StringVar(&v, long, "", usage)
	fs.StringVar(&v, short, "", usage+" (short)")
	_ = fs.Parse(args)

	return v
}

// JsonConfigFlags extracts the config file path given via -c or -config.
// If neither is present, an empty string is returned.
func JsonConfigFlags() string {
	return stringFlag("config", "c", "Path to config file")
}

// EnvFileFlag extracts the dotenv file path given via -env or -E.
func EnvFileFlag() string {
	return stringFlag("env", "E", "Path to .env file")
}
