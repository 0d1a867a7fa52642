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

package config

import (
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Root is the top-level decoded configuration document: a listener, the
// compression settings nested under vnlib.net.compression, and the
// optional plugins block.
type Root struct {
	Listener Listener `mapstructure:"listener"`
	Vnlib    struct {
		Net struct {
			Compression Compression `mapstructure:"compression"`
		} `mapstructure:"net"`
	} `mapstructure:"vnlib"`
	Plugin Plugin `mapstructure:"plugins"`
}

// Compression returns the decoded vnlib.net.compression block.
func (r Root) Compression() Compression {
	return r.Vnlib.Net.Compression
}

// Decode reads a configuration document through v (already pointed at a
// file, environment, or in-memory source by the caller) into a Root,
// applying Listener's field defaults first so unspecified keys behave
// sensibly. Decoding goes through viper's mapstructure-backed Unmarshal with
// StringToTimeDurationHookFunc added, so tcp_keepalive_time and
// keepalive_interval accept duration strings ("30s") in addition to a bare
// integer of nanoseconds.
func Decode(v *viper.Viper) (Root, error) {
	root := Root{
		Listener: Defaults(),
		Plugin:   DefaultPlugin(),
	}

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := v.Unmarshal(&root, hook); err != nil {
		return Root{}, err
	}

	return root, nil
}
