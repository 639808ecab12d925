// roles/pkg/encode/abi.go

package encode

const rolesABI = `[
	{"type":"function","name":"allowTarget","stateMutability":"nonpayable","inputs":[
		{"name":"roleKey","type":"bytes32"},
		{"name":"targetAddress","type":"address"},
		{"name":"options","type":"uint8"}
	],"outputs":[]},
	{"type":"function","name":"scopeTarget","stateMutability":"nonpayable","inputs":[
		{"name":"roleKey","type":"bytes32"},
		{"name":"targetAddress","type":"address"}
	],"outputs":[]},
	{"type":"function","name":"revokeTarget","stateMutability":"nonpayable","inputs":[
		{"name":"roleKey","type":"bytes32"},
		{"name":"targetAddress","type":"address"}
	],"outputs":[]},
	{"type":"function","name":"allowFunction","stateMutability":"nonpayable","inputs":[
		{"name":"roleKey","type":"bytes32"},
		{"name":"targetAddress","type":"address"},
		{"name":"selector","type":"bytes4"},
		{"name":"options","type":"uint8"}
	],"outputs":[]},
	{"type":"function","name":"scopeFunction","stateMutability":"nonpayable","inputs":[
		{"name":"roleKey","type":"bytes32"},
		{"name":"targetAddress","type":"address"},
		{"name":"selector","type":"bytes4"},
		{"name":"conditions","type":"tuple[]","components":[
			{"name":"parent","type":"uint8"},
			{"name":"paramType","type":"uint8"},
			{"name":"operator","type":"uint8"},
			{"name":"compValue","type":"bytes"}
		]},
		{"name":"options","type":"uint8"}
	],"outputs":[]},
	{"type":"function","name":"revokeFunction","stateMutability":"nonpayable","inputs":[
		{"name":"roleKey","type":"bytes32"},
		{"name":"targetAddress","type":"address"},
		{"name":"selector","type":"bytes4"}
	],"outputs":[]},
	{"type":"function","name":"assignRoles","stateMutability":"nonpayable","inputs":[
		{"name":"module","type":"address"},
		{"name":"roleKeys","type":"bytes32[]"},
		{"name":"memberOf","type":"bool[]"}
	],"outputs":[]},
	{"type":"function","name":"setAllowance","stateMutability":"nonpayable","inputs":[
		{"name":"key","type":"bytes32"},
		{"name":"balance","type":"uint128"},
		{"name":"maxRefill","type":"uint128"},
		{"name":"refill","type":"uint128"},
		{"name":"period","type":"uint64"},
		{"name":"timestamp","type":"uint64"}
	],"outputs":[]}
]`

const posterABI = `[
	{"type":"function","name":"post","stateMutability":"nonpayable","inputs":[
		{"name":"content","type":"string"},
		{"name":"tag","type":"string"}
	],"outputs":[]}
]`
