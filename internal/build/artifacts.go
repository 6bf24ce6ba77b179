package build

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"megaton-build-go/internal/config"
	"megaton-build-go/internal/executor"
	"megaton-build-go/internal/system"
)

//go:embed template/main.npdm.json
var npdmTemplate []byte

// verfileContent exports only the entry point from the module.
func verfileContent(entry string) []byte {
	return []byte("{\n\tglobal:\n\t\t" + entry + ";\n\tlocal: *;\n};\n")
}

func npdmContent(titleID uint64) ([]byte, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(npdmTemplate, &data); err != nil {
		return nil, system.Errorf(system.KindInternal, "invalid npdm template: %v", err)
	}
	data["title_id"] = fmt.Sprintf("0x%016x", titleID)
	out, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return nil, system.Errorf(system.KindInternal, "cannot serialize npdm: %v", err)
	}
	return append(out, '\n'), nil
}

// createNpdm writes main.npdm.json and runs npdmtool on it when the json
// changed or main.npdm is missing.
func (this *run) createNpdm(paths *Paths, module *config.Module) error {
	content, err := npdmContent(module.TitleID)
	if err != nil {
		return err
	}
	changed, err := system.WriteFileIfChanged(paths.NpdmJSON, content)
	if err != nil {
		return err
	}
	_, missing, err := system.Stat(paths.Npdm)
	if err != nil {
		return err
	}
	if !changed && !missing {
		return nil
	}
	this.Printer.Info("Creating", "%s", paths.Rel(paths.Npdm))
	res, err := executor.Run(this.pool, []string{this.toolchain.Npdm, paths.NpdmJSON, paths.Npdm})
	if err != nil {
		return err
	}
	if !res.Success {
		this.Printer.Lines(res.Stderr)
		return system.PathError(system.KindTool, "npdmtool failed to create", paths.Npdm, res.Err)
	}
	return nil
}

func (this *run) createVerfile(paths *Paths, entry string) error {
	changed, err := system.WriteFileIfChanged(paths.Verfile, verfileContent(entry))
	if changed && err == nil {
		this.Printer.Verbose("Created", "%s", paths.Rel(paths.Verfile))
	}
	return err
}

type clangdFile struct {
	CompileFlags clangdCompileFlags `yaml:"CompileFlags"`
}

type clangdCompileFlags struct {
	CompilationDatabase string   `yaml:"CompilationDatabase"`
	Remove              []string `yaml:"Remove,omitempty"`
}

// writeClangd points clangd at the compile_commands.json of this profile.
func writeClangd(paths *Paths, cfg *config.Clangd) error {
	output := cfg.Output
	if output == "" {
		output = ".clangd"
	}
	if !filepath.IsAbs(output) {
		output = filepath.Join(paths.Root, output)
	}
	data, err := yaml.Marshal(&clangdFile{CompileFlags: clangdCompileFlags{
		CompilationDatabase: paths.Target,
		Remove:              cfg.Remove,
	}})
	if err != nil {
		return system.Errorf(system.KindInternal, "cannot serialize .clangd: %v", err)
	}
	header := "# generated by megaton from " + system.ConfigFile + "\n"
	_, err = system.WriteFileIfChanged(output, append([]byte(header), data...))
	return err
}

// writeReport writes one item per line to path.
func writeReport(path string, items []string) error {
	return system.WriteFile(path, []byte(strings.Join(items, "\n")+"\n"))
}
