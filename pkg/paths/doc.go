/*
Package paths implements the addressing scheme shared by the runtime, adapters and actuators.

A path is a dotted string with optional bracket segments:

	data.user.name
	data.items[0].title
	state['ui-mode']
	data.matrix[1][2]

Parse turns a path into segments, Get and Set walk nested map[string]any / []any
structures, and Flatten expands a nested structure into a flat path→value map.
Slices are atomic for synchronization purposes: Flatten never descends into them.

None of the functions in this package panic; missing data is reported as absence.
*/
package paths
