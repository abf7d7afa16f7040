// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package rsync implements the core of the rsync algorithm: computing a
// compact delta between a "basis" byte sequence and a "target" byte
// sequence, and reconstructing the target from the basis plus that delta.
//
// It does not implement the rsync wire protocol, any RPC/SSH transport,
// or file-tree traversal; it only covers checksum generation, block
// matching and reconstruction.
package rsync
