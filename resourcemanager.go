package dirfile

import (
	"fmt"
	"os"
)

// ResourceManager is the stack of open resource forks a running movie draws
// on to resolve a resource: zero or more user-opened files plus an optional
// system resource file, searched current-file-first then system, per
// SPEC_FULL.md §4.11.
type ResourceManager struct {
	fs          VirtualFileSystem
	currentFile int
	files       []*ResourceFile
	forks       []VirtualFile
	system      *ResourceFile
}

// NewResourceManager builds a ResourceManager over fs. system, if non-nil,
// is read in full and opened as an in-memory resource file searched last.
func NewResourceManager(fs VirtualFileSystem, system []byte) (*ResourceManager, error) {
	rm := &ResourceManager{fs: fs, currentFile: 0}
	if system != nil {
		sysFile, err := OpenResourceFile(&mmapReadSeeker{data: system})
		if err != nil {
			return nil, fmt.Errorf("can't create system resource from memory: %w", err)
		}
		rm.system = sysFile
	}
	return rm, nil
}

// OpenResourceFile opens path's resource fork, pushes it onto the stack, and
// makes it the current file.
func (rm *ResourceManager) OpenResourceFile(path string) error {
	fork, err := rm.fs.OpenResourceFork(path)
	if err != nil {
		return err
	}
	resFile, err := OpenResourceFile(fork)
	if err != nil {
		fork.Close()
		return err
	}
	rm.files = append(rm.files, resFile)
	rm.forks = append(rm.forks, fork)
	rm.currentFile = len(rm.files)
	return nil
}

// CloseResourceFile closes the resource file identified by refNum.
func (rm *ResourceManager) CloseResourceFile(refNum RefNum) error {
	for index, file := range rm.files {
		if file.ReferenceNumber() == refNum {
			rm.forks[index].Close()
			rm.files = append(rm.files[:index], rm.files[index+1:]...)
			rm.forks = append(rm.forks[:index], rm.forks[index+1:]...)
			if rm.currentFile > index {
				rm.currentFile--
			}
			return nil
		}
	}
	return ErrBadRefNum
}

// UseResourceFile makes the file identified by refNum the current file.
// RefNum(0) selects the system file.
func (rm *ResourceManager) UseResourceFile(refNum RefNum) error {
	if refNum == SystemRefNum {
		rm.currentFile = 0
		return nil
	}
	for index, file := range rm.files {
		if file.ReferenceNumber() == refNum {
			rm.currentFile = index + 1
			return nil
		}
	}
	return ErrBadRefNum
}

// currentResourceFile returns the file used for a "current file only"
// lookup (a Get1... operation), which is the system file when
// currentFile is 0.
func (rm *ResourceManager) currentResourceFile() (*ResourceFile, error) {
	if rm.currentFile == 0 {
		if rm.system == nil {
			return nil, ErrNoSystemFile
		}
		return rm.system, nil
	}
	if rm.currentFile-1 >= len(rm.files) {
		return nil, fmt.Errorf("%w: current file %d of %d", ErrBadCurrentFile, rm.currentFile, len(rm.files))
	}
	return rm.files[rm.currentFile-1], nil
}

// CountResources returns the total number of kind resources across every
// open file, including the system file.
func (rm *ResourceManager) CountResources(kind OSType) int {
	count := 0
	if rm.system != nil {
		count += rm.system.Count(kind)
	}
	for _, file := range rm.files {
		count += file.Count(kind)
	}
	return count
}

// CountOneResources returns the number of kind resources in the current
// file only.
func (rm *ResourceManager) CountOneResources(kind OSType) int {
	file, err := rm.currentResourceFile()
	if err != nil {
		return 0
	}
	return file.Count(kind)
}

// GetResource loads id, searching every open file (current file first, in
// reverse-open order, then the system file).
func GetResource[T any](rm *ResourceManager, id ResourceId, decode ResourceDecoder[T]) (T, bool, error) {
	for i := rm.currentFile - 1; i >= 0; i-- {
		if rm.files[i].Contains(id) {
			v, err := LoadResource(rm.files[i], id, decode)
			return v, true, err
		}
	}
	if rm.system != nil && rm.system.Contains(id) {
		v, err := LoadResource(rm.system, id, decode)
		return v, true, err
	}
	var zero T
	return zero, false, nil
}

// GetNamedResource loads the kind resource named name, searching the same
// order as GetResource.
func GetNamedResource[T any](rm *ResourceManager, kind OSType, name []byte, decode ResourceDecoder[T]) (T, bool, error) {
	for i := rm.currentFile - 1; i >= 0; i-- {
		if id, ok := rm.files[i].IdOfName(kind, name); ok {
			v, err := LoadResource(rm.files[i], id, decode)
			return v, true, err
		}
	}
	if rm.system != nil {
		if id, ok := rm.system.IdOfName(kind, name); ok {
			v, err := LoadResource(rm.system, id, decode)
			return v, true, err
		}
	}
	var zero T
	return zero, false, nil
}

// GetOneResource loads id from the current file only.
func GetOneResource[T any](rm *ResourceManager, id ResourceId, decode ResourceDecoder[T]) (T, bool, error) {
	return getOneBy(rm, decode, func(file *ResourceFile) (ResourceId, bool) {
		return id, file.Contains(id)
	})
}

// GetOneNamedResource loads the kind resource named name from the current
// file only.
func GetOneNamedResource[T any](rm *ResourceManager, kind OSType, name []byte, decode ResourceDecoder[T]) (T, bool, error) {
	return getOneBy(rm, decode, func(file *ResourceFile) (ResourceId, bool) {
		return file.IdOfName(kind, name)
	})
}

// GetOneIndexedResource loads the index'th kind resource from the current
// file only.
func GetOneIndexedResource[T any](rm *ResourceManager, kind OSType, index int, decode ResourceDecoder[T]) (T, bool, error) {
	return getOneBy(rm, decode, func(file *ResourceFile) (ResourceId, bool) {
		return file.IdOfIndex(kind, index)
	})
}

func getOneBy[T any](rm *ResourceManager, decode ResourceDecoder[T], getID func(*ResourceFile) (ResourceId, bool)) (T, bool, error) {
	var zero T
	file, err := rm.currentResourceFile()
	if err != nil {
		return zero, false, err
	}
	id, ok := getID(file)
	if !ok {
		return zero, false, nil
	}
	v, err := LoadResource(file, id, decode)
	return v, true, err
}

// GetString resolves the well-known negative string IDs the Mac System
// reserved for the current username and machine name, falling back to a
// plain 'STR ' resource lookup for any other id.
func (rm *ResourceManager) GetString(id ResNum) (string, bool) {
	const usernameID ResNum = -16096
	const machineNameID ResNum = -16413

	switch id {
	case usernameID:
		if user := os.Getenv("USER"); user != "" {
			return user, true
		}
		if user := os.Getenv("USERNAME"); user != "" {
			return user, true
		}
		return "", false
	case machineNameID:
		if host, err := os.Hostname(); err == nil {
			return host, true
		}
		return "", false
	default:
		v, ok, err := GetResource(rm, NewResourceId(NewOSType("STR "), id), decodeMacPString)
		if err != nil || !ok {
			return "", false
		}
		return v, true
	}
}

// GetIndexedString returns the index'th (1-based) string from a 'STR#'
// string-list resource.
func (rm *ResourceManager) GetIndexedString(id ResNum, index int) (string, bool) {
	names, ok, err := GetResource(rm, NewResourceId(NewOSType("STR#"), id), DecodeStringList)
	if err != nil || !ok || index < 1 || index > len(names) {
		return "", false
	}
	return names[index-1], true
}

func decodeMacPString(data []byte) (string, error) {
	if len(data) < 1 {
		return "", ErrFileTooSmall
	}
	n := int(data[0])
	if 1+n > len(data) {
		return "", ErrFileTooSmall
	}
	return decodeMacString(data[1:1+n], 0), nil
}
