package gtfile

import "os"

func readWholeFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func writeWholeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
