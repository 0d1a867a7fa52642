/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package compress

// Level is the host-side compression level enum referenced by the
// compression configuration's "level" key. Its numeric value is passed to
// the native library unchanged (InitCompressor sends int32(level)).
type Level uint8

const (
	// LevelFastest favors throughput over ratio. Default when "level" is
	// absent from configuration.
	LevelFastest Level = iota
	LevelDefault
	LevelSmallest
)

// String renders the level the way it is spelled in configuration files.
func (l Level) String() string {
	switch l {
	case LevelFastest:
		return "fastest"
	case LevelDefault:
		return "default"
	case LevelSmallest:
		return "smallest"
	default:
		return "fastest"
	}
}

// ParseLevel parses the "level" configuration value, defaulting to
// LevelFastest for an empty or unrecognized string.
func ParseLevel(s string) Level {
	switch s {
	case "default":
		return LevelDefault
	case "smallest", "best":
		return LevelSmallest
	default:
		return LevelFastest
	}
}
