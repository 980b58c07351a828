// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tagid stores small identity records on NFC tags.
//
// A record is a FieldSet (a device id, optionally a Bluetooth name and MAC
// address) serialized as a JSON object and carried in the first NDEF text
// record on the tag. TextCodec converts between strings and text record
// payloads, FieldSerializer converts between field sets and JSON, and
// Exchange joins both to a TagIO implementation such as a PN532 reader
// (package pn532) or a tag image (package memtag).
//
// Tags written by early Android builds carry the language code "UTF-8" and
// were read back with a status mask of 0x33, leaving a "TF-8" marker in front
// of the JSON. Config.StrictLegacyCompat, on by default, reproduces that
// behavior on read and write so such tags keep working in both directions.
//
// Errors fall into three categories tested with errors.Is:
// ErrMalformedRecord, ErrInvalidFieldData and ErrUpstreamIO.
package tagid
