package pahkattype

import "fmt"

// Payload is the tagged variant describing the concrete, downloadable
// artifact backing a release target. Kind discriminates which fields are
// populated; unrecognized kinds are preserved in Opaque so that new
// payload kinds can be added without touching resolution logic.
type Payload struct {
	Kind string `toml:"type"`

	TarballPackage   *TarballPackage   `toml:"-"`
	WindowsExecutable *WindowsExecutable `toml:"-"`
	MacOSPackage     *MacOSPackage     `toml:"-"`
	Opaque           map[string]any    `toml:"-"`
}

const (
	KindTarballPackage    = "TarballPackage"
	KindWindowsExecutable = "WindowsExecutable"
	KindMacOSPackage      = "MacOSPackage"
)

// TarballPackage is a platform-agnostic compressed tar archive, unpacked
// directly into a prefix by the PrefixStore.
type TarballPackage struct {
	URL    string `toml:"url"`
	Size   int64  `toml:"size"`
	SHA256 string `toml:"sha256"`
}

// WindowsExecutable wraps an MSI/EXE installer invoked by SystemStore.
type WindowsExecutable struct {
	URL         string `toml:"url"`
	Size        int64  `toml:"size"`
	SHA256      string `toml:"sha256"`
	InstallerKind string `toml:"kind"`
	ProductCode string `toml:"productCode"`
}

// MacOSPackage wraps a .pkg installer invoked by SystemStore.
type MacOSPackage struct {
	URL    string `toml:"url"`
	Size   int64  `toml:"size"`
	SHA256 string `toml:"sha256"`
	PkgID  string `toml:"pkgId"`
}

// ContentLength returns the declared size of the payload, satisfying the
// invariant that every payload carries content length and content hash.
func (p Payload) ContentLength() int64 {
	switch p.Kind {
	case KindTarballPackage:
		if p.TarballPackage != nil {
			return p.TarballPackage.Size
		}
	case KindWindowsExecutable:
		if p.WindowsExecutable != nil {
			return p.WindowsExecutable.Size
		}
	case KindMacOSPackage:
		if p.MacOSPackage != nil {
			return p.MacOSPackage.Size
		}
	}
	return 0
}

// ContentHash returns the declared sha256 of the payload.
func (p Payload) ContentHash() string {
	switch p.Kind {
	case KindTarballPackage:
		if p.TarballPackage != nil {
			return p.TarballPackage.SHA256
		}
	case KindWindowsExecutable:
		if p.WindowsExecutable != nil {
			return p.WindowsExecutable.SHA256
		}
	case KindMacOSPackage:
		if p.MacOSPackage != nil {
			return p.MacOSPackage.SHA256
		}
	}
	return ""
}

// UnmarshalTOML implements toml.Unmarshaler so that a Payload table's
// "type" field selects which concrete struct the remaining fields decode
// into. Unrecognized kinds are kept verbatim in Opaque rather than
// rejected, so that a repository publishing a payload kind this engine
// doesn't know about doesn't break parsing of every other package.
func (p *Payload) UnmarshalTOML(data interface{}) error {
	table, ok := data.(map[string]interface{})
	if !ok {
		return fmt.Errorf("pahkattype: payload is not a table: %T", data)
	}

	kind, _ := table["type"].(string)
	p.Kind = kind

	switch kind {
	case KindTarballPackage:
		p.TarballPackage = &TarballPackage{
			URL:    stringField(table, "url"),
			Size:   int64Field(table, "size"),
			SHA256: stringField(table, "sha256"),
		}
	case KindWindowsExecutable:
		p.WindowsExecutable = &WindowsExecutable{
			URL:           stringField(table, "url"),
			Size:          int64Field(table, "size"),
			SHA256:        stringField(table, "sha256"),
			InstallerKind: stringField(table, "kind"),
			ProductCode:   stringField(table, "productCode"),
		}
	case KindMacOSPackage:
		p.MacOSPackage = &MacOSPackage{
			URL:    stringField(table, "url"),
			Size:   int64Field(table, "size"),
			SHA256: stringField(table, "sha256"),
			PkgID:  stringField(table, "pkgId"),
		}
	default:
		p.Opaque = table
	}

	return nil
}

func stringField(table map[string]interface{}, key string) string {
	s, _ := table[key].(string)
	return s
}

func int64Field(table map[string]interface{}, key string) int64 {
	switch v := table[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// URL returns the download URL for the payload, regardless of kind.
func (p Payload) URL() string {
	switch p.Kind {
	case KindTarballPackage:
		if p.TarballPackage != nil {
			return p.TarballPackage.URL
		}
	case KindWindowsExecutable:
		if p.WindowsExecutable != nil {
			return p.WindowsExecutable.URL
		}
	case KindMacOSPackage:
		if p.MacOSPackage != nil {
			return p.MacOSPackage.URL
		}
	}
	return ""
}
