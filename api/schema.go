package api

// Config describes one feature extraction run. It is decoded from HCL or JSON.
type Config struct {
	// LogFile is the path of the log file; empty logs to stderr.
	LogFile string `hcl:"log_file,optional" json:"logFile,omitempty"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `hcl:"log_level,optional" json:"logLevel,omitempty"`
	// Workers bounds the number of propositions processed concurrently.
	Workers int `hcl:"workers,optional" json:"workers,omitempty"`
	// MissingMarker renders an absent feature in text sinks.
	MissingMarker string `hcl:"missing_marker,optional" json:"missingMarker,omitempty"`
	// SkipMalformed drops rejected propositions instead of failing the run.
	SkipMalformed bool `hcl:"skip_malformed,optional" json:"skipMalformed,omitempty"`

	Corpus     *Corpus     `hcl:"corpus,block" json:"corpus,omitempty"`
	Extractors []Extractor `hcl:"extractor,block" json:"extractors,omitempty"`
	Output     *Output     `hcl:"output,block" json:"output,omitempty"`
}

// Corpus describes the token table source.
type Corpus struct {
	// Format is "conll" (tab separated rows) or "sqlite" (JSON records).
	Format string `hcl:"format,optional" json:"format,omitempty"`
	// Columns names the CoNLL fields in file order.
	Columns []string `hcl:"columns,optional" json:"columns,omitempty"`
	// Selectors maps a column name to a JSONPath evaluated on each SQLite record.
	Selectors map[string]string `hcl:"selectors,optional" json:"selectors,omitempty"`

	IDColumn             string `hcl:"id_column,optional" json:"idColumn,omitempty"`
	HeadColumn           string `hcl:"head_column,optional" json:"headColumn,omitempty"`
	PredicateColumn      string `hcl:"predicate_column,optional" json:"predicateColumn,omitempty"`
	PredicatePlaceholder string `hcl:"predicate_placeholder,optional" json:"predicatePlaceholder,omitempty"`
}

// Extractor enables one feature family. Kind is the block label in HCL.
type Extractor struct {
	Kind    string   `hcl:"kind,label" json:"kind"`
	Columns []string `hcl:"columns,optional" json:"columns,omitempty"`
	Shifts  []int    `hcl:"shifts,optional" json:"shifts,omitempty"`

	// predicate_path
	Policy      string   `hcl:"policy,optional" json:"policy,omitempty"`
	PathColumns []string `hcl:"path_columns,optional" json:"pathColumns,omitempty"`
	MaxLength   int      `hcl:"max_length,optional" json:"maxLength,omitempty"`

	// passive_voice
	PosColumn      string `hcl:"pos_column,optional" json:"posColumn,omitempty"`
	LemmaColumn    string `hcl:"lemma_column,optional" json:"lemmaColumn,omitempty"`
	ParticipleTag  string `hcl:"participle_tag,optional" json:"participleTag,omitempty"`
	AuxiliaryLemma string `hcl:"auxiliary_lemma,optional" json:"auxiliaryLemma,omitempty"`

	// predicate_morph
	MorphColumn string `hcl:"morph_column,optional" json:"morphColumn,omitempty"`
	Separator   string `hcl:"separator,optional" json:"separator,omitempty"`
}

// Output selects the feature sink. The format follows the path extension
// (.db for SQLite, .tsv for tab separated text) unless Format is set.
type Output struct {
	Path   string `hcl:"path,optional" json:"path,omitempty"`
	Format string `hcl:"format,optional" json:"format,omitempty"`
}
