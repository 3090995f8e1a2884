package protocol

import "github.com/danmuck/msgwire/internal/protocol/schema"

func personSchema() *schema.Schema {
	return schema.MustNew("Person",
		schema.FieldSpec{Name: "name", Number: 1, Kind: schema.KindString, Cardinality: schema.Required},
		schema.FieldSpec{Name: "age", Number: 2, Kind: schema.KindInt64},
		schema.FieldSpec{Name: "tags", Number: 3, Kind: schema.KindString, Cardinality: schema.Repeated},
	)
}

// ucipSchema mirrors the user context document the codec was first used for.
func ucipSchema() *schema.Schema {
	consent := schema.MustNew("Consent",
		schema.FieldSpec{Name: "granted", Number: 1, Kind: schema.KindBool, Cardinality: schema.Required},
		schema.FieldSpec{Name: "scopes", Number: 2, Kind: schema.KindString, Cardinality: schema.Repeated},
	)
	return schema.MustNew("UCIP",
		schema.FieldSpec{Name: "version", Number: 1, Kind: schema.KindString, Cardinality: schema.Required},
		schema.FieldSpec{Name: "userId", Number: 2, Kind: schema.KindString, Cardinality: schema.Required},
		schema.FieldSpec{Name: "timestamp", Number: 3, Kind: schema.KindString},
		schema.FieldSpec{Name: "consent", Number: 4, Kind: schema.KindMessage, Cardinality: schema.Required, Message: consent},
		schema.FieldSpec{Name: "blob", Number: 5, Kind: schema.KindBytes},
		schema.FieldSpec{Name: "revision", Number: 6, Kind: schema.KindInt64},
	)
}

func ucipMessage() Message {
	return Message{
		"version":   String("1.0"),
		"userId":    String("user-123"),
		"timestamp": String("2025-07-21T12:00:00Z"),
		"consent": Msg(Message{
			"granted": Bool(true),
			"scopes":  Strings("basic", "ads"),
		}),
		"blob":     Bytes([]byte{0x00, 0xFF, 0x10}),
		"revision": Int64(-42),
	}
}

func treeSchema() *schema.Schema {
	node := schema.Declare("Node")
	if err := node.Define(
		schema.FieldSpec{Name: "label", Number: 1, Kind: schema.KindString},
		schema.FieldSpec{Name: "children", Number: 2, Kind: schema.KindMessage, Cardinality: schema.Repeated, Message: node},
	); err != nil {
		panic(err)
	}
	return node
}

// chain builds a Node nested depth levels deep.
func chain(depth int) Message {
	m := Message{"label": String("leaf")}
	for i := 1; i < depth; i++ {
		m = Message{"label": String("n"), "children": List(Msg(m))}
	}
	return m
}
