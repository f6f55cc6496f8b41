package engine

import "os"

func testUnwrapHelperEnv() bool {
	return os.Getenv("DIM_TEST_UNWRAP_HELPER") == "1"
}

func testBinaryPath() string {
	return os.Args[0]
}
