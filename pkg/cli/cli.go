// Package cli implements the compiler's command line surface: GNU-style
// long/short flags, gcc-style grouped toggles (-W..., -F...), and the help
// pages rendered from them.
package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"
)

// Value is the stored form of one flag.
type Value interface {
	String() string
	Set(string) error
}

type stringValue struct{ p *string }

func (v *stringValue) Set(s string) error { *v.p = s; return nil }
func (v *stringValue) String() string     { return *v.p }

type boolValue struct{ p *bool }

func (v *boolValue) Set(s string) error {
	if s == "" {
		*v.p = true
		return nil
	}
	val, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean value '%s': %w", s, err)
	}
	*v.p = val
	return nil
}
func (v *boolValue) String() string { return strconv.FormatBool(*v.p) }

type intValue struct{ p *int }

func (v *intValue) Set(s string) error {
	val, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer value '%s': %w", s, err)
	}
	*v.p = val
	return nil
}
func (v *intValue) String() string { return strconv.Itoa(*v.p) }

type Flag struct {
	Name         string
	Shorthand    string
	Usage        string
	Value        Value
	DefValue     string
	ExpectedType string
}

// FlagGroup is a family of boolean toggles sharing a prefix, like gcc's
// -W<warning> and -Wno-<warning>.
type FlagGroup struct {
	Name        string
	Description string
	Flags       []FlagGroupEntry
	GroupType   string
	Header      string
}

// FlagGroupEntry is one toggle of a group. Enabled and Disabled are distinct
// so the caller can tell an explicit -Wno-x from an untouched default.
type FlagGroupEntry struct {
	Name     string
	Prefix   string
	Usage    string
	Enabled  *bool
	Disabled *bool
}

type FlagSet struct {
	name       string
	flags      map[string]*Flag
	shorthands map[string]*Flag
	args       []string
	flagGroups []FlagGroup
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:       name,
		flags:      make(map[string]*Flag),
		shorthands: make(map[string]*Flag),
	}
}

// Args returns the positional arguments left after Parse.
func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) String(p *string, name, shorthand, value, usage, expectedType string) {
	*p = value
	f.Var(&stringValue{p}, name, shorthand, usage, value, expectedType)
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	f.Var(&boolValue{p}, name, shorthand, usage, strconv.FormatBool(value), "")
}

func (f *FlagSet) Int(p *int, name, shorthand string, value int, usage, expectedType string) {
	*p = value
	f.Var(&intValue{p}, name, shorthand, usage, strconv.Itoa(value), expectedType)
}

// DefineGroupFlags registers the -<prefix><name> and -<prefix>no-<name>
// spellings of every entry.
func (f *FlagSet) DefineGroupFlags(entries []FlagGroupEntry) {
	for i := range entries {
		e := &entries[i]
		if e.Enabled != nil {
			f.Bool(e.Enabled, e.Prefix+e.Name, "", *e.Enabled, e.Usage)
		}
		if e.Disabled != nil {
			f.Bool(e.Disabled, e.Prefix+"no-"+e.Name, "", *e.Disabled, "Disable '"+e.Name+"'")
		}
	}
}

func (f *FlagSet) AddFlagGroup(name, description, groupType, header string, entries []FlagGroupEntry) {
	f.DefineGroupFlags(entries)
	f.flagGroups = append(f.flagGroups, FlagGroup{
		Name:        name,
		Description: description,
		Flags:       entries,
		GroupType:   groupType,
		Header:      header,
	})
}

func (f *FlagSet) Var(value Value, name, shorthand, usage, defValue, expectedType string) {
	if name == "" {
		panic("flag name cannot be empty")
	}
	if _, ok := f.flags[name]; ok {
		panic(fmt.Sprintf("flag redefined: %s", name))
	}
	flag := &Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: value, DefValue: defValue, ExpectedType: expectedType}
	f.flags[name] = flag
	if shorthand != "" {
		if _, ok := f.shorthands[shorthand]; ok {
			panic(fmt.Sprintf("shorthand flag redefined: %s", shorthand))
		}
		f.shorthands[shorthand] = flag
	}
}

// Parse consumes arguments until the list ends or "--" is seen. Single-dash
// spellings match a full flag name first (so group toggles like -Wall work),
// then fall back to the one-letter shorthand form.
func (f *FlagSet) Parse(arguments []string) error {
	f.args = nil
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		if len(arg) < 2 || arg[0] != '-' {
			f.args = append(f.args, arg)
			continue
		}
		if arg == "--" {
			f.args = append(f.args, arguments[i+1:]...)
			break
		}
		var err error
		if strings.HasPrefix(arg, "--") {
			err = f.parseLong(arg[2:], arguments, &i)
		} else {
			err = f.parseShort(arg[1:], arguments, &i)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (f *FlagSet) parseLong(spec string, arguments []string, i *int) error {
	name, value, hasValue := strings.Cut(spec, "=")
	if name == "" {
		return fmt.Errorf("empty flag name")
	}
	flag := f.flags[name]
	if flag == nil {
		return fmt.Errorf("unknown flag: --%s", name)
	}
	return f.setFlag(flag, value, hasValue, arguments, i)
}

func (f *FlagSet) parseShort(spec string, arguments []string, i *int) error {
	name, value, hasValue := strings.Cut(spec, "=")
	if flag := f.flags[name]; flag != nil {
		return f.setFlag(flag, value, hasValue, arguments, i)
	}

	shorthand := spec[:1]
	flag := f.shorthands[shorthand]
	if flag == nil {
		return fmt.Errorf("unknown shorthand flag: -%s", shorthand)
	}
	if rest := spec[1:]; rest != "" {
		// Attached value, as in -o out.c spelled -oout.c.
		return flag.Value.Set(strings.TrimPrefix(rest, "="))
	}
	return f.setFlag(flag, "", false, arguments, i)
}

func (f *FlagSet) setFlag(flag *Flag, value string, hasValue bool, arguments []string, i *int) error {
	if hasValue {
		return flag.Value.Set(value)
	}
	if _, isBool := flag.Value.(*boolValue); isBool {
		return flag.Value.Set("")
	}
	if *i+1 >= len(arguments) {
		return fmt.Errorf("flag needs an argument: -%s", flag.Name)
	}
	*i++
	return flag.Value.Set(arguments[*i])
}

// App ties a FlagSet to the program's entry point and help output.
type App struct {
	Name        string
	Synopsis    string
	Description string
	Authors     []string
	Repository  string
	Since       int
	FlagSet     *FlagSet
	Action      func(args []string) error
}

func NewApp(name string) *App {
	return &App{Name: name, FlagSet: NewFlagSet(name)}
}

func (a *App) Run(arguments []string) error {
	help := false
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information")

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintln(os.Stderr, err)
		a.writeUsage(os.Stderr)
		return err
	}
	if help {
		a.writeHelp(os.Stdout)
		return nil
	}
	if a.Action != nil {
		return a.Action(a.FlagSet.Args())
	}
	return nil
}

const indentUnit = "    "

func (a *App) writeUsage(w *os.File) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Usage: %s %s\n", a.Name, a.Synopsis)
	sb.WriteString("\n" + indentUnit + "Options\n")
	a.writeOptions(&sb)
	fmt.Fprintf(&sb, "\nRun '%s --help' for all available options and flags.\n", a.Name)
	fmt.Fprint(w, sb.String())
}

func (a *App) writeHelp(w *os.File) {
	var sb strings.Builder

	since := ""
	if a.Since > 0 && a.Since != time.Now().Year() {
		since = fmt.Sprintf("%d-", a.Since)
	}
	fmt.Fprintf(&sb, "\n%sCopyright (c) %s%d: %s and contributors\n",
		indentUnit, since, time.Now().Year(), strings.Join(a.Authors, ", "))
	if a.Repository != "" {
		fmt.Fprintf(&sb, "%sFor more details refer to %s\n", indentUnit, a.Repository)
	}

	if a.Synopsis != "" {
		fmt.Fprintf(&sb, "\n%sSynopsis\n%s%s %s\n", indentUnit, indentUnit+indentUnit, a.Name, a.Synopsis)
	}
	if a.Description != "" {
		fmt.Fprintf(&sb, "\n%sDescription\n", indentUnit)
		for _, line := range wrapText(a.Description, termWidth()-2*len(indentUnit)) {
			fmt.Fprintf(&sb, "%s%s\n", indentUnit+indentUnit, line)
		}
	}

	sb.WriteString("\n" + indentUnit + "Options\n")
	a.writeOptions(&sb)

	for _, group := range a.FlagSet.flagGroups {
		a.writeGroup(&sb, group)
	}
	fmt.Fprint(w, sb.String())
}

// writeOptions renders the plain flags, sorted by name, group toggles
// excluded. Each line is "<spelling>  <usage>  |default|".
func (a *App) writeOptions(sb *strings.Builder) {
	flags := a.optionFlags()
	sort.Slice(flags, func(i, j int) bool { return flags[i].Name < flags[j].Name })

	width := 0
	for _, flag := range flags {
		if n := len(flagSpelling(flag)); n > width {
			width = n
		}
	}
	for _, flag := range flags {
		def := ""
		if _, isBool := flag.Value.(*boolValue); !isBool && flag.DefValue != "" {
			def = fmt.Sprintf("  |%s|", flag.DefValue)
		}
		a.writeEntry(sb, width, flagSpelling(flag), flag.Usage+def)
	}
}

func (a *App) writeGroup(sb *strings.Builder, group FlagGroup) {
	fmt.Fprintf(sb, "\n%s%s\n", indentUnit, group.Name)

	prefix := group.Flags[0].Prefix
	width := len(prefix) + len("no-") + len(group.GroupType) + 2
	for _, entry := range group.Flags {
		if len(entry.Name) > width {
			width = len(entry.Name)
		}
	}

	a.writeEntry(sb, width, fmt.Sprintf("-%s<%s>", prefix, group.GroupType), "Enable a specific "+group.GroupType)
	a.writeEntry(sb, width, fmt.Sprintf("-%sno-<%s>", prefix, group.GroupType), "Disable a specific "+group.GroupType)
	if group.Header != "" {
		fmt.Fprintf(sb, "%s%s\n", indentUnit, group.Header)
	}

	entries := make([]FlagGroupEntry, len(group.Flags))
	copy(entries, group.Flags)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	for _, entry := range entries {
		state := "|-|"
		if entry.Enabled != nil && *entry.Enabled && (entry.Disabled == nil || !*entry.Disabled) {
			state = "|x|"
		}
		a.writeEntry(sb, width, entry.Name, entry.Usage+"  "+state)
	}
}

// writeEntry writes one aligned help line, wrapping the usage text to the
// terminal width.
func (a *App) writeEntry(sb *strings.Builder, width int, left, usage string) {
	avail := termWidth() - 2*len(indentUnit) - width - 1
	if avail < 10 {
		avail = 10
	}
	lines := wrapText(usage, avail)
	if len(lines) == 0 {
		lines = []string{""}
	}
	fmt.Fprintf(sb, "%s%-*s %s\n", indentUnit+indentUnit, width, left, lines[0])
	cont := strings.Repeat(" ", width+1)
	for _, line := range lines[1:] {
		fmt.Fprintf(sb, "%s%s%s\n", indentUnit+indentUnit, cont, line)
	}
}

func (a *App) optionFlags() []*Flag {
	var flags []*Flag
	for _, flag := range a.FlagSet.flags {
		if !a.isGroupFlag(flag.Name) {
			flags = append(flags, flag)
		}
	}
	return flags
}

func (a *App) isGroupFlag(name string) bool {
	for _, group := range a.FlagSet.flagGroups {
		for _, entry := range group.Flags {
			if name == entry.Prefix+entry.Name || name == entry.Prefix+"no-"+entry.Name {
				return true
			}
		}
	}
	return false
}

func flagSpelling(flag *Flag) string {
	var sb strings.Builder
	_, isBool := flag.Value.(*boolValue)
	if flag.Shorthand != "" {
		fmt.Fprintf(&sb, "-%s, ", flag.Shorthand)
	}
	fmt.Fprintf(&sb, "--%s", flag.Name)
	if !isBool && flag.ExpectedType != "" {
		fmt.Fprintf(&sb, " <%s>", flag.ExpectedType)
	}
	return sb.String()
}

func termWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < 20 {
		return 80
	}
	return width
}

func wrapText(text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	var line strings.Builder
	for _, word := range words {
		if line.Len() > 0 && line.Len()+1+len(word) > maxWidth {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return lines
}
