// Package bovespa refines daily IBOVESPA composition snapshots into an
// analytics-ready, partitioned dataset registered in a metadata catalog.
//
// A refine run moves through five stages, each of which only feeds the next:
//
// 1. Source
//
//    A Source loads every raw snapshot partition that has ever been written
//    (one object per trading day) into a single slice of RawRecords. Raw
//    records are loose string maps keyed by the column names the extractor
//    wrote; nothing is interpreted yet.
//
// 2. Normalizer
//
//    The Normalizer renames raw columns to their canonical names, drops the
//    ones it doesn't know, and coerces the text-encoded numbers (comma
//    decimals, digit grouping) and dates into typed Records. A value that
//    can't be coerced fails the whole run; nothing is ever silently zeroed.
//
// 3. Aggregator
//
//    The Aggregator attaches two window values to every record without
//    collapsing any rows: the number of records sharing {entity, category,
//    snapshot date} and the total theoretical quantity of the entity across
//    every snapshot date in the input.
//
// 4. Publisher
//
//    The Publisher stamps the processing date on every record and replaces
//    the output partition for that date in the Store. The partition folder
//    name and the stamped value always agree, since the catalog discovers
//    partitions from the folder layout.
//
// 5. Registrar
//
//    The Registrar upserts the catalog database and table descriptor and then
//    asks the catalog to discover partitions. Discovery failures degrade the
//    run to SuccessWithWarnings instead of failing it.
//
// Job ties the stages together and reports a Result. Concrete stores,
// catalogs, and stats backends live in subpackages.
package bovespa
