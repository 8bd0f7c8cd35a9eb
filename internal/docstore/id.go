// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

package docstore

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ID is a store-assigned document identifier. The zero value means the
// document has not been persisted yet.
//
// In MongoDB an ID holding a valid ObjectID hex string is stored as an
// ObjectID, so identifiers and references to them (such as a post's author)
// keep their native type. Other backends store it as a plain string.
type ID string

// IsZero reports whether the identifier is absent.
func (id ID) IsZero() bool {
	return id == ""
}

// String returns the identifier text.
func (id ID) String() string {
	return string(id)
}

// MarshalBSONValue encodes the identifier as an ObjectID when possible.
func (id ID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if oid, err := primitive.ObjectIDFromHex(string(id)); err == nil {
		return bson.MarshalValue(oid)
	}
	return bson.MarshalValue(string(id))
}

// UnmarshalBSONValue decodes an ObjectID or string into the identifier.
func (id *ID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.ObjectID:
		oid, ok := raw.ObjectIDOK()
		if !ok {
			return fmt.Errorf("docstore: malformed ObjectID")
		}
		*id = ID(oid.Hex())
	case bsontype.String:
		s, ok := raw.StringValueOK()
		if !ok {
			return fmt.Errorf("docstore: malformed string ID")
		}
		*id = ID(s)
	case bsontype.Null, bsontype.Undefined:
		*id = ""
	default:
		return fmt.Errorf("docstore: cannot decode BSON %s into ID", t)
	}
	return nil
}
