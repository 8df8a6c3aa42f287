package config

// MountOptions holds high-level settings for the FUSE mount.
// No go-fuse types are exposed here.
type MountOptions struct {
	Debug        bool    // fuse debug logs
	FsName       string  // mount's FsName
	Name         string  // mount's Name
	AttrTimeout  float64 // attribute cache timeout in seconds
	EntryTimeout float64 // directory entry cache timeout in seconds
}
