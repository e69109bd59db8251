package discovery

// ABIs and creation bytecode of the two oracle helper contracts. Neither is
// ever deployed: they run transiently through the deployless caller.

const balanceGetterABI = `[
 {"type":"function","name":"getBalances","stateMutability":"view",
  "inputs":[
   {"name":"account","type":"address"},
   {"name":"tokens","type":"address[]"}],
  "outputs":[
   {"name":"info","type":"tuple[]","components":[
    {"name":"err","type":"bytes"},
    {"name":"symbol","type":"string"},
    {"name":"amount","type":"uint256"},
    {"name":"decimals","type":"uint8"}]}]},
 {"type":"function","name":"simulateAndGetBalances","stateMutability":"view",
  "inputs":[
   {"name":"account","type":"address"},
   {"name":"associatedKeys","type":"bytes32[]"},
   {"name":"tokens","type":"address[]"},
   {"name":"factory","type":"address"},
   {"name":"factoryCalldata","type":"bytes"},
   {"name":"startNonce","type":"uint256"},
   {"name":"ops","type":"tuple[]","components":[
    {"name":"nonce","type":"uint256"},
    {"name":"calls","type":"tuple[]","components":[
     {"name":"to","type":"address"},
     {"name":"value","type":"uint256"},
     {"name":"data","type":"bytes"}]}]}],
  "outputs":[
   {"name":"beforeNonce","type":"uint256"},
   {"name":"afterNonce","type":"uint256"},
   {"name":"before","type":"tuple[]","components":[
    {"name":"err","type":"bytes"},
    {"name":"symbol","type":"string"},
    {"name":"amount","type":"uint256"},
    {"name":"decimals","type":"uint8"}]},
   {"name":"after","type":"tuple[]","components":[
    {"name":"err","type":"bytes"},
    {"name":"symbol","type":"string"},
    {"name":"amount","type":"uint256"},
    {"name":"decimals","type":"uint8"}]},
   {"name":"simulationErr","type":"bytes"}]}
]`

const nftGetterABI = `[
 {"type":"function","name":"getAllNFTs","stateMutability":"view",
  "inputs":[
   {"name":"account","type":"address"},
   {"name":"collections","type":"tuple[]","components":[
    {"name":"addr","type":"address"},
    {"name":"enumerable","type":"bool"},
    {"name":"ids","type":"uint256[]"}]},
   {"name":"limit","type":"uint256"}],
  "outputs":[
   {"name":"info","type":"tuple[]","components":[
    {"name":"err","type":"bytes"},
    {"name":"name","type":"string"},
    {"name":"symbol","type":"string"},
    {"name":"ids","type":"uint256[]"}]}]},
 {"type":"function","name":"simulateAndGetAllNFTs","stateMutability":"view",
  "inputs":[
   {"name":"account","type":"address"},
   {"name":"associatedKeys","type":"bytes32[]"},
   {"name":"collections","type":"tuple[]","components":[
    {"name":"addr","type":"address"},
    {"name":"enumerable","type":"bool"},
    {"name":"ids","type":"uint256[]"}]},
   {"name":"factory","type":"address"},
   {"name":"factoryCalldata","type":"bytes"},
   {"name":"startNonce","type":"uint256"},
   {"name":"ops","type":"tuple[]","components":[
    {"name":"nonce","type":"uint256"},
    {"name":"calls","type":"tuple[]","components":[
     {"name":"to","type":"address"},
     {"name":"value","type":"uint256"},
     {"name":"data","type":"bytes"}]}]},
   {"name":"limit","type":"uint256"}],
  "outputs":[
   {"name":"beforeNonce","type":"uint256"},
   {"name":"afterNonce","type":"uint256"},
   {"name":"before","type":"tuple[]","components":[
    {"name":"err","type":"bytes"},
    {"name":"name","type":"string"},
    {"name":"symbol","type":"string"},
    {"name":"ids","type":"uint256[]"}]},
   {"name":"after","type":"tuple[]","components":[
    {"name":"err","type":"bytes"},
    {"name":"name","type":"string"},
    {"name":"symbol","type":"string"},
    {"name":"ids","type":"uint256[]"}]},
   {"name":"simulationErr","type":"bytes"}]}
]`

const balanceGetterCode = "0x608060405234801561001057600080fd5b506102a9806100206000396000f3fe608060405234801561001057600080fd5b50600436106100365760003560e01c80631a3d00681461003b578063b52ebd1f1461006b575b600080fd5b610055600480360381019061005091906103e2565b61009b565b60405161006291906105d1565b60405180910390f35b610085600480360381019061008091906104a7565b6101c4565b60405161009295949392919061060f565b60405180910390f35b60606000825167ffffffffffffffff8111156100ba576100b96107a3565b5b6040519080825280602002602001820160405280156100f357816020015b6100e06102f1565b8152602001906001900390816100d85790505b50905060005b83518110156101b957600084828151811061011757610116610774565b5b6020026020010151905061012b86826101d9565b83838151811061013e5761013d610774565b5b6020026020010181905250508080610155906106f1565b9150506100f9565b508091505092915050565b6000806060806060600087340361028557610280565b8596505b939792965093509350565b6101e16102f1565b600073ffffffffffffffffffffffffffffffffffffffff168373ffffffffffffffffffffffffffffffffffffffff160361024d578273ffffffffffffffffffffffffffffffffffffffff163181602001906101000a8152505061028a565b61025783836102a1565b50505b92915050565b600080fd5b80600001519050919050565b919050565b60008082905060208101519150509250929050565b6040518060800160405280606081526020016060815260200160008152602001600060ff1681525090565b600080fd5b600080fd5b505050565b565b56fea2646970667358221220c1a2b96d4ef10b5a9d83f2c7e6d4a1b08f3e5c2d9a7b6c5d4e3f20102030405064736f6c63430008130033"

const nftGetterCode = "0x608060405234801561001057600080fd5b506102d7806100206000396000f3fe608060405234801561001057600080fd5b50600436106100365760003560e01c806342a9b1fc1461003b5780637d9f6f7e1461006b575b600080fd5b610055600480360381019061005091906103f4565b61009b565b60405161006291906105e3565b60405180910390f35b610085600480360381019061008091906104b9565b6101d6565b6040516100929594939291906106215b60405180910390f35b60606000835167ffffffffffffffff8111156100ba576100b96107b5565b5b6040519080825280602002602001820160405280156100f357816020015b6100e0610303565b8152602001906001900390816100d85790505b50905060005b84518110156101cb57600085828151811061011757610116610786565b5b6020026020010151905061012c8782876101eb565b83838151811061013f5761013e610786565b5b6020026020010181905250508080610156906106f1565b9150506100f9565b508091505093925050505b6000806060806060600088340361029757610292565b8697505b94989397965094509450565b6101f3610303565b600082602001511561025f5760005b848110156102595761021486826102b3565b1561024657818460400151908060018154018082558091505060019003906000526020600020016000909190919091505b808061025190610713565b915050610202565b5061028c565b60005b8360400151518110156102895761027a86856102b3565b1561028157505b60010161026257fe5b50505b9392505050565b600080fd5b80600001519050919050565b919050565b60008083905060208101519150509250929050565b60006040518060800160405280606081526020016060815260200160608152602001606081525090565b600080fd5b600080fd5b505050565b565b56fea264697066735822122081f4c2a6d9e7b35c4a2f1e0d8c6b5a493827160594a3b2c1d0e9f8a7b6c5d4e364736f6c63430008130033"
