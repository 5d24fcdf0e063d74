package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

const (
	argumentTerminator   = "--"
	longFlagPrefix       = "--"
	flagPrefix           = "-"
	flagValueSeparator   = "="
	extensionsAliasName  = "ext"
	flagAssignmentFormat = "--%s=%s"
)

// listFlagNames accept several space-separated values, as in --ext .py .md.
var listFlagNames = map[string]struct{}{
	extensionsFlagName:   {},
	extensionsAliasName:  {},
	packagesFlagName:     {},
	excludeFlagName:      {},
	excludeFilesFlagName: {},
}

// toggleFlagNames accept an optional trailing literal, as in --copy no.
var toggleFlagNames = map[string]struct{}{
	saveFlagName:  {},
	copyFlagName:  {},
	quietFlagName: {},
}

var toggleLiterals = map[string]bool{
	"true":  true,
	"yes":   true,
	"y":     true,
	"on":    true,
	"1":     true,
	"false": false,
	"no":    false,
	"n":     false,
	"off":   false,
	"0":     false,
}

// normalizeFlagName maps --ext onto --extensions.
func normalizeFlagName(flagSet *pflag.FlagSet, name string) pflag.NormalizedName {
	if name == extensionsAliasName {
		name = extensionsFlagName
	}
	return pflag.NormalizedName(name)
}

// normalizeArguments rewrites the command line into the form pflag parses:
// every value after a list flag becomes its own --flag=value, a list flag with
// no values is dropped, and toggle literals such as "--copy no" or
// "--save=on" become --flag=false or --flag=true. Unknown toggle values are
// left for pflag to reject. The result is never nil.
func normalizeArguments(arguments []string) []string {
	normalized := make([]string, 0, len(arguments))
	index := 0
	for index < len(arguments) {
		current := arguments[index]
		if current == argumentTerminator {
			normalized = append(normalized, arguments[index:]...)
			break
		}
		index++
		flagName, attachedValue, hasValue, isLongFlag := splitLongFlag(current)
		if !isLongFlag {
			normalized = append(normalized, current)
			continue
		}
		if _, isList := listFlagNames[flagName]; isList && !hasValue {
			for index < len(arguments) && !strings.HasPrefix(arguments[index], flagPrefix) {
				normalized = append(normalized, fmt.Sprintf(flagAssignmentFormat, flagName, arguments[index]))
				index++
			}
			continue
		}
		if _, isToggle := toggleFlagNames[flagName]; isToggle {
			if hasValue {
				normalized = append(normalized, toggleArgument(flagName, attachedValue))
				continue
			}
			if index < len(arguments) {
				if _, isLiteral := parseToggleLiteral(arguments[index]); isLiteral {
					normalized = append(normalized, toggleArgument(flagName, arguments[index]))
					index++
					continue
				}
			}
		}
		normalized = append(normalized, current)
	}
	return normalized
}

// splitLongFlag reports the name and any attached value of a --flag argument.
func splitLongFlag(argument string) (string, string, bool, bool) {
	if !strings.HasPrefix(argument, longFlagPrefix) || argument == argumentTerminator {
		return "", "", false, false
	}
	name, value, hasValue := strings.Cut(strings.TrimPrefix(argument, longFlagPrefix), flagValueSeparator)
	return name, value, hasValue, true
}

func toggleArgument(flagName string, literal string) string {
	parsed, isLiteral := parseToggleLiteral(literal)
	if !isLiteral {
		return fmt.Sprintf(flagAssignmentFormat, flagName, literal)
	}
	return fmt.Sprintf(flagAssignmentFormat, flagName, strconv.FormatBool(parsed))
}

func parseToggleLiteral(literal string) (bool, bool) {
	parsed, isLiteral := toggleLiterals[strings.ToLower(strings.TrimSpace(literal))]
	return parsed, isLiteral
}
