package dialect

// Capability is one bit of a dialect's Capabilities bitset (spec §4.1).
// Consumers ask the bitset, never the concrete dialect type — this is the
// "capability object" re-architecture called for in spec §9 in place of
// the teacher's per-GeneratorMode branching throughout schema/generator.go.
type Capability uint64

const (
	AutoIncrement Capability = 1 << iota
	AutoIncrementOnNonId
	AutoIncrementMultiplePerTable
	NamedPrimaryKeys
	NamedForeignKeys
	NamedDefaultValues
	Enums
	Json
	JsonList
	Decimal
	ScalarLists
	MultiSchema
	AdvancedJsonNullability
	CompoundIds
	ClusteringSetting
	FullTextIndex
	JsonFilteringArrayPath
	JsonFilteringJsonPath
	RelationFieldsInArbitraryOrder
	CreateMany
	InsensitiveFilters
	ImplicitManyToManyRelation
	IndexColumnLengthPrefixing
)

// Capabilities is a dialect's full capability bitset.
type Capabilities Capability

func (c Capabilities) Has(cap Capability) bool { return Capability(c)&cap != 0 }

func NewCapabilities(caps ...Capability) Capabilities {
	var c Capability
	for _, bit := range caps {
		c |= bit
	}
	return Capabilities(c)
}
