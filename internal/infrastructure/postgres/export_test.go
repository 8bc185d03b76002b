package postgres

var IsSequencingConflict = isSequencingConflict
