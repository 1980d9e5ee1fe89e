/*
Package config resolves the settings of a potato command.

Every setting is a command-line flag. Its value comes from, highest priority
first:

	1. the flag on the command line            --chunk-size 1000
	2. the environment                         POTATO_CHUNK_SIZE=1000
	3. the YAML file named by --config         chunk_size: 1000
	4. the flag default

MONGODB_URI, DATABASE_NAME and COLLECTION_NAME are also read, unprefixed, for
deployments that already set them.
*/
package config
